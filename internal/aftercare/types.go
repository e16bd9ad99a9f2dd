package aftercare

import (
	"fmt"
	"strings"
	"time"
)

// TimingType selects how a template task's due date is computed.
type TimingType string

const (
	// TimingImmediate offsets the anchor date by a number of days.
	TimingImmediate TimingType = "immediate"
	// TimingAnniversary offsets the anchor date by whole years.
	TimingAnniversary TimingType = "anniversary"
)

// ParseTimingType validates a timing string at the configuration boundary so
// the rest of the engine can treat TimingType as a closed enum.
func ParseTimingType(s string) (TimingType, error) {
	switch TimingType(strings.ToLower(strings.TrimSpace(s))) {
	case TimingImmediate:
		return TimingImmediate, nil
	case TimingAnniversary:
		return TimingAnniversary, nil
	default:
		return "", fmt.Errorf("unknown timing type %q", s)
	}
}

// HistoricalMode decides what happens to tasks whose computed due date is
// already in the past at generation time.
//
// Importing years of historical records would otherwise either flood the task
// system with thousands of overdue items or silently erase history; the mode
// lets the caller choose the tradeoff per import.
type HistoricalMode string

const (
	// ModeSkip creates past-due tasks flagged historical-skip: visible as
	// backlog, not actionable.
	ModeSkip HistoricalMode = "skip"
	// ModeComplete creates past-due tasks already completed, with
	// CompletedAt backdated to the due date.
	ModeComplete HistoricalMode = "complete"
	// ModeInclude creates past-due tasks as ordinary overdue items.
	ModeInclude HistoricalMode = "include"
)

func ParseHistoricalMode(s string) (HistoricalMode, error) {
	switch HistoricalMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSkip:
		return ModeSkip, nil
	case ModeComplete:
		return ModeComplete, nil
	case ModeInclude:
		return ModeInclude, nil
	default:
		return "", fmt.Errorf("unknown historical mode %q", s)
	}
}

func (m HistoricalMode) valid() bool {
	return m == ModeSkip || m == ModeComplete || m == ModeInclude
}

// TemplateTask is one follow-up task definition inside a template.
// Exactly one of DaysOffset/AnniversaryYear is meaningful, selected by Timing;
// template loading enforces that.
type TemplateTask struct {
	Title           string
	Description     string
	Timing          TimingType
	DaysOffset      int
	AnniversaryYear int
}

// TaskTemplate is an ordered set of follow-up task definitions for one stage.
type TaskTemplate struct {
	ID        string
	Stage     string
	Evergreen bool
	Tasks     []TemplateTask
}

// AnchorRecord is the read-only source of truth for all date math: typically
// a settled property with its settlement date and responsible owner. A nil
// AnchorDate means the record cannot be scheduled and is skipped.
type AnchorRecord struct {
	ID         string
	AnchorDate *time.Time
	OwnerID    string
}

// TaskInstance is the engine's output unit: one generated follow-up task.
// Created once per (record x template task); never updated by this package
// after creation.
type TaskInstance struct {
	ID             string
	Title          string
	Description    string
	DueDate        time.Time
	AnchorRecordID string
	// AftercareYear is the anniversary offset this task corresponds to
	// (0 = immediate). Nil when the timing rule was malformed.
	AftercareYear *int
	AssignedTo    string
	Completed     bool
	CompletedAt   *time.Time
	HistoricalSkip bool
	// DedupKey is filled by Options.DedupKeyFunc when the caller opts into
	// stable idempotency keys; empty otherwise.
	DedupKey string
}

// Summary aggregates counters for one activation run. It is derived output,
// never persisted by this package.
type Summary struct {
	PlansActivated        int
	TasksCreated          int
	TasksSkipped          int
	TasksHistorical       int
	EvergreenPlansCreated int
}
