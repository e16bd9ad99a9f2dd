package aftercare

import "time"

// Disposition is the outcome of classifying one generated task against the
// batch run's historical mode. Classification never drops a task; it only
// changes how the row is created.
type Disposition int

const (
	// DispositionNormal creates the task as an ordinary actionable item.
	DispositionNormal Disposition = iota
	// DispositionSkip creates the task flagged historical-skip.
	DispositionSkip
	// DispositionComplete creates the task already completed, backdated.
	DispositionComplete
)

// Classify decides the disposition of a task due at due, evaluated at now.
//
// Tasks not yet due are always created normally regardless of mode. Past-due
// tasks follow the mode: skip flags them, complete backdates them, include
// leaves them as overdue actionable items.
func Classify(due, now time.Time, mode HistoricalMode) Disposition {
	if !due.Before(now) {
		return DispositionNormal
	}
	switch mode {
	case ModeSkip:
		return DispositionSkip
	case ModeComplete:
		return DispositionComplete
	default:
		return DispositionNormal
	}
}
