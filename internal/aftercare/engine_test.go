package aftercare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/markbryant-rw/aftercare/pkg/logx"
)

// fakeSink records chunk writes in memory and can fail a chosen chunk.
type fakeSink struct {
	mu          sync.Mutex
	chunks      [][]TaskInstance
	active      []string
	failOnChunk int // 0-based; -1 = never fail
}

var errSinkBoom = errors.New("store rejected write")

func newFakeSink() *fakeSink { return &fakeSink{failOnChunk: -1} }

func (s *fakeSink) BulkInsertTasks(_ context.Context, tasks []TaskInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOnChunk >= 0 && len(s.chunks) == s.failOnChunk {
		return errSinkBoom
	}
	cp := make([]TaskInstance, len(tasks))
	copy(cp, tasks)
	s.chunks = append(s.chunks, cp)
	return nil
}

func (s *fakeSink) MarkPlansActive(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append(s.active, ids...)
	return nil
}

func (s *fakeSink) all() []TaskInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaskInstance
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

func testNow() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func anchorPtr(t time.Time) *time.Time { return &t }

func TestActivateHistoricalPartition(t *testing.T) {
	t.Parallel()
	now := testNow()
	anchor := now.AddDate(-3, 0, 0)
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{
		{Title: "call", Timing: TimingImmediate, DaysOffset: 1},
		{Title: "card", Timing: TimingAnniversary, AnniversaryYear: 1},
		{Title: "review", Timing: TimingAnniversary, AnniversaryYear: 2},
	}}
	records := []AnchorRecord{{ID: "r1", AnchorDate: anchorPtr(anchor), OwnerID: "agent-1"}}

	tests := []struct {
		mode           HistoricalMode
		wantSkipped    int
		wantHistorical int
		wantCompleted  int
	}{
		{ModeSkip, 3, 3, 0},
		{ModeComplete, 0, 3, 3},
		{ModeInclude, 0, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			sink := newFakeSink()
			eng := NewEngine(sink, logx.Nop(), nil)

			sum, err := eng.Activate(context.Background(), records, tpl, nil, Options{Mode: tt.mode, Now: now})
			if err != nil {
				t.Fatalf("Activate: %v", err)
			}
			if sum.TasksCreated != 3 {
				t.Fatalf("TasksCreated = %d, want 3 (no task is ever dropped)", sum.TasksCreated)
			}
			if sum.TasksSkipped != tt.wantSkipped || sum.TasksHistorical != tt.wantHistorical {
				t.Fatalf("skipped/historical = %d/%d, want %d/%d", sum.TasksSkipped, sum.TasksHistorical, tt.wantSkipped, tt.wantHistorical)
			}

			all := sink.all()
			if len(all) != 3 {
				t.Fatalf("persisted %d instances, want 3", len(all))
			}
			completed := 0
			for _, inst := range all {
				if inst.Completed {
					completed++
					if inst.CompletedAt == nil || !inst.CompletedAt.Equal(inst.DueDate) {
						t.Fatalf("completed instance must be backdated to due date: %+v", inst)
					}
				}
				if tt.mode == ModeSkip && !inst.HistoricalSkip {
					t.Fatalf("expected historical skip flag: %+v", inst)
				}
				if tt.mode == ModeInclude && (inst.HistoricalSkip || inst.Completed) {
					t.Fatalf("include mode must create plain overdue rows: %+v", inst)
				}
			}
			if completed != tt.wantCompleted {
				t.Fatalf("completed = %d, want %d", completed, tt.wantCompleted)
			}
		})
	}
}

func TestActivateEvergreenBound(t *testing.T) {
	t.Parallel()
	now := testNow()
	// 15 whole years old: anniversary generation since anchor would be
	// unbounded, so the engine rotates the evergreen template instead.
	anchor := now.AddDate(-15, 0, 0).Add(-time.Hour)
	std := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 1}}}
	ever := TaskTemplate{ID: "ever", Evergreen: true, Tasks: []TemplateTask{
		{Title: "check-in", Timing: TimingAnniversary, AnniversaryYear: 1},
		{Title: "market update", Timing: TimingAnniversary, AnniversaryYear: 1},
	}}
	records := []AnchorRecord{{ID: "r1", AnchorDate: anchorPtr(anchor), OwnerID: "agent-1"}}

	sink := newFakeSink()
	eng := NewEngine(sink, logx.Nop(), nil)
	sum, err := eng.Activate(context.Background(), records, std, &ever, Options{Mode: ModeSkip, Now: now})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if sum.EvergreenPlansCreated != 1 || sum.PlansActivated != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	all := sink.all()
	if len(all) != 5 {
		t.Fatalf("expected exactly 5 evergreen instances, got %d", len(all))
	}
	wantTitles := []string{"check-in", "market update", "check-in", "market update", "check-in"}
	for i, inst := range all {
		if inst.Title != wantTitles[i] {
			t.Fatalf("instance %d title = %q, want %q (template rotation)", i, inst.Title, wantTitles[i])
		}
		if inst.AftercareYear == nil || *inst.AftercareYear != 16+i {
			t.Fatalf("instance %d aftercare year = %v, want %d", i, inst.AftercareYear, 16+i)
		}
		if inst.DueDate.Before(now) {
			t.Fatalf("evergreen instance %d is already past: %v", i, inst.DueDate)
		}
		if inst.HistoricalSkip || inst.Completed {
			t.Fatalf("evergreen instances are plain future tasks: %+v", inst)
		}
	}
}

func TestActivateChunking(t *testing.T) {
	t.Parallel()
	now := testNow()
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 30}}}

	records := make([]AnchorRecord, 0, 250)
	for i := 0; i < 250; i++ {
		records = append(records, AnchorRecord{
			ID:         fmt.Sprintf("r%03d", i),
			AnchorDate: anchorPtr(now.AddDate(0, 0, -1)),
		})
	}

	sink := newFakeSink()
	eng := NewEngine(sink, logx.Nop(), nil)
	sum, err := eng.Activate(context.Background(), records, tpl, nil, Options{Mode: ModeInclude, Now: now})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if sum.TasksCreated != 250 || sum.PlansActivated != 250 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	if len(sink.chunks) != 3 {
		t.Fatalf("expected 3 bulk writes, got %d", len(sink.chunks))
	}
	for i, want := range []int{100, 100, 50} {
		if len(sink.chunks[i]) != want {
			t.Fatalf("chunk %d has %d rows, want %d", i, len(sink.chunks[i]), want)
		}
	}
	if len(sink.active) != 250 {
		t.Fatalf("expected 250 records marked active, got %d", len(sink.active))
	}
}

func TestActivateSkipsRecordsWithoutAnchorDate(t *testing.T) {
	t.Parallel()
	now := testNow()
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 1}}}
	records := []AnchorRecord{
		{ID: "no-date"},
		{ID: "ok", AnchorDate: anchorPtr(now.AddDate(0, 0, -10))},
	}

	sink := newFakeSink()
	eng := NewEngine(sink, logx.Nop(), nil)
	sum, err := eng.Activate(context.Background(), records, tpl, nil, Options{Mode: ModeInclude, Now: now})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if sum.PlansActivated != 1 || sum.TasksCreated != 1 {
		t.Fatalf("record without anchor date must not count: %+v", sum)
	}
	if len(sink.active) != 1 || sink.active[0] != "ok" {
		t.Fatalf("unexpected active records: %v", sink.active)
	}
}

func TestActivateChunkFailureAborts(t *testing.T) {
	t.Parallel()
	now := testNow()
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 1}}}
	records := make([]AnchorRecord, 0, 150)
	for i := 0; i < 150; i++ {
		records = append(records, AnchorRecord{
			ID:         fmt.Sprintf("r%03d", i),
			AnchorDate: anchorPtr(now.AddDate(0, 0, 1)),
		})
	}

	sink := newFakeSink()
	sink.failOnChunk = 1
	eng := NewEngine(sink, logx.Nop(), nil)

	_, err := eng.Activate(context.Background(), records, tpl, nil, Options{Mode: ModeInclude, Now: now})
	if !errors.Is(err, errSinkBoom) {
		t.Fatalf("expected store error surfaced as-is, got %v", err)
	}
	// First chunk is written and not rolled back; no plans are marked active.
	if len(sink.chunks) != 1 {
		t.Fatalf("expected 1 written chunk before abort, got %d", len(sink.chunks))
	}
	if len(sink.active) != 0 {
		t.Fatalf("no plans should be marked active after abort, got %v", sink.active)
	}
}

func TestActivateInvalidMode(t *testing.T) {
	t.Parallel()
	eng := NewEngine(newFakeSink(), logx.Nop(), nil)
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 1}}}
	_, err := eng.Activate(context.Background(), nil, tpl, nil, Options{Mode: HistoricalMode("purge")})
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestActivateDedupKeyFunc(t *testing.T) {
	t.Parallel()
	now := testNow()
	tpl := TaskTemplate{ID: "std", Tasks: []TemplateTask{{Title: "call", Timing: TimingImmediate, DaysOffset: 1}}}
	records := []AnchorRecord{{ID: "r1", AnchorDate: anchorPtr(now.AddDate(0, 0, -1))}}

	sink := newFakeSink()
	eng := NewEngine(sink, logx.Nop(), nil)
	opts := Options{
		Mode: ModeInclude,
		Now:  now,
		DedupKeyFunc: func(inst TaskInstance) string {
			return inst.AnchorRecordID + "|" + inst.Title
		},
	}
	if _, err := eng.Activate(context.Background(), records, tpl, nil, opts); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	all := sink.all()
	if len(all) != 1 || all[0].DedupKey != "r1|call" {
		t.Fatalf("expected dedup key on persisted instance, got %+v", all)
	}
}
