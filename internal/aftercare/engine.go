package aftercare

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/markbryant-rw/aftercare/internal/eventbus"
	"github.com/markbryant-rw/aftercare/pkg/logx"
)

// chunkSize is the fixed bulk-insert payload limit of the task store.
const chunkSize = 100

// TaskSink is the persistence boundary the engine writes through. Transport
// (SQL, HTTP, file) is the sink's business, not the engine's.
type TaskSink interface {
	BulkInsertTasks(ctx context.Context, tasks []TaskInstance) error
	MarkPlansActive(ctx context.Context, recordIDs []string) error
}

// Options tunes one activation run.
type Options struct {
	// Mode is required and decides the disposition of past-due tasks.
	Mode HistoricalMode

	// Now anchors all date math for the run. Zero means wall-clock time;
	// tests inject a fixed clock here.
	Now time.Time

	// DedupKeyFunc, when non-nil, computes a stable idempotency key per
	// instance before insert. The engine itself computes no key: activation
	// is non-atomic and retries can duplicate rows unless the caller opts in.
	DedupKeyFunc func(TaskInstance) string

	// ChunkLimiter, when non-nil, paces the sequential chunk writes so large
	// activations don't saturate the store.
	ChunkLimiter *rate.Limiter
}

// ActivationEvent is published on the bus for activation lifecycle events.
type ActivationEvent struct {
	RunID   string  `json:"run_id"`
	Records int     `json:"records"`
	Summary Summary `json:"summary"`
	Error   string  `json:"error,omitempty"`
}

// Engine orchestrates batch activation: per-record task generation followed
// by chunked persistence. One invocation is synchronous and self-contained;
// concurrent invocations over overlapping record sets are not guarded.
type Engine struct {
	sink TaskSink
	log  logx.Logger
	bus  eventbus.Bus
}

func NewEngine(sink TaskSink, log logx.Logger, bus eventbus.Bus) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{sink: sink, log: log, bus: bus}
}

// Activate generates an aftercare plan for every record that has an anchor
// date and persists the resulting task instances in chunks of 100.
//
// Records without an anchor date are skipped, not failed: one malformed
// record must not block hundreds of valid ones. A chunk-write failure is
// fatal to the run and surfaced as-is; already-written chunks are not rolled
// back, so the caller must treat activation as retry-after-verify.
func (e *Engine) Activate(ctx context.Context, records []AnchorRecord, tpl TaskTemplate, evergreen *TaskTemplate, opts Options) (Summary, error) {
	var sum Summary

	if !opts.Mode.valid() {
		return sum, fmt.Errorf("%w: %q", ErrInvalidMode, string(opts.Mode))
	}
	if e.sink == nil {
		return sum, ErrNoSink
	}
	if len(tpl.Tasks) == 0 {
		return sum, fmt.Errorf("%w: template %q", ErrNoTasks, tpl.ID)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	runID := uuid.NewString()
	log := e.log.With(logx.String("run", runID), logx.String("template", tpl.ID))
	log.Info("activation started",
		logx.Int("records", len(records)),
		logx.String("mode", string(opts.Mode)),
	)
	e.publish("activation.started", ActivationEvent{RunID: runID, Records: len(records)})

	// Generate everything in memory before the first write.
	instances := make([]TaskInstance, 0, len(records)*len(tpl.Tasks))
	activated := make([]string, 0, len(records))

	for _, rec := range records {
		if rec.AnchorDate == nil || rec.AnchorDate.IsZero() {
			log.Debug("record skipped: no anchor date", logx.String("record", rec.ID))
			continue
		}

		yearsAgo := wholeYearsSince(*rec.AnchorDate, now)
		if yearsAgo > evergreenAgeYears && evergreen != nil && len(evergreen.Tasks) > 0 {
			evs := evergreenInstances(rec, *evergreen, yearsAgo, now)
			instances = append(instances, evs...)
			sum.TasksCreated += len(evs)
			sum.EvergreenPlansCreated++
			log.Debug("evergreen rotation generated",
				logx.String("record", rec.ID),
				logx.Int("years_ago", yearsAgo),
				logx.Int("tasks", len(evs)),
			)
		} else {
			for _, tt := range tpl.Tasks {
				inst := e.buildInstance(rec, tt, now, opts.Mode, &sum)
				instances = append(instances, inst)
			}
		}

		activated = append(activated, rec.ID)
		sum.PlansActivated++
	}

	if opts.DedupKeyFunc != nil {
		for i := range instances {
			instances[i].DedupKey = opts.DedupKeyFunc(instances[i])
		}
	}

	if err := e.persist(ctx, instances, opts.ChunkLimiter); err != nil {
		log.Error("activation aborted", logx.Err(err), logx.Int("tasks_buffered", len(instances)))
		e.publish("activation.failed", ActivationEvent{RunID: runID, Records: len(records), Summary: sum, Error: err.Error()})
		return sum, err
	}

	if len(activated) > 0 {
		if err := e.sink.MarkPlansActive(ctx, activated); err != nil {
			log.Error("marking plans active failed", logx.Err(err))
			e.publish("activation.failed", ActivationEvent{RunID: runID, Records: len(records), Summary: sum, Error: err.Error()})
			return sum, fmt.Errorf("mark plans active: %w", err)
		}
	}

	log.Info("activation finished",
		logx.Int("plans", sum.PlansActivated),
		logx.Int("tasks", sum.TasksCreated),
		logx.Int("skipped", sum.TasksSkipped),
		logx.Int("historical", sum.TasksHistorical),
		logx.Int("evergreen", sum.EvergreenPlansCreated),
	)
	e.publish("activation.finished", ActivationEvent{RunID: runID, Records: len(records), Summary: sum})
	return sum, nil
}

func (e *Engine) buildInstance(rec AnchorRecord, tt TemplateTask, now time.Time, mode HistoricalMode, sum *Summary) TaskInstance {
	due, year := ResolveDueDate(*rec.AnchorDate, tt)
	inst := TaskInstance{
		ID:             uuid.NewString(),
		Title:          tt.Title,
		Description:    tt.Description,
		DueDate:        due,
		AnchorRecordID: rec.ID,
		AftercareYear:  year,
		AssignedTo:     rec.OwnerID,
	}

	switch Classify(due, now, mode) {
	case DispositionSkip:
		inst.HistoricalSkip = true
		sum.TasksSkipped++
		sum.TasksHistorical++
	case DispositionComplete:
		inst.Completed = true
		completedAt := due
		inst.CompletedAt = &completedAt
		sum.TasksHistorical++
	}

	sum.TasksCreated++
	return inst
}

// persist writes instances sequentially in fixed-size chunks. Chunk writes
// are not parallelized: the dominant cost is store latency per chunk, and
// ordering keeps failure reporting simple.
func (e *Engine) persist(ctx context.Context, instances []TaskInstance, limiter *rate.Limiter) error {
	for start := 0; start < len(instances); start += chunkSize {
		end := start + chunkSize
		if end > len(instances) {
			end = len(instances)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := e.sink.BulkInsertTasks(ctx, instances[start:end]); err != nil {
			return fmt.Errorf("bulk insert tasks (chunk %d, rows %d..%d): %w", start/chunkSize, start, end-1, err)
		}
	}
	return nil
}

func (e *Engine) publish(typ string, data ActivationEvent) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
