package aftercare

import "errors"

var (
	ErrInvalidMode = errors.New("invalid historical mode")
	ErrNoSink      = errors.New("no task sink configured")
	ErrNoTasks     = errors.New("template has no tasks")
)
