package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/markbryant-rw/aftercare/internal/address"
	"github.com/markbryant-rw/aftercare/internal/aftercare"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.tasks.jsonl   (append-only JSON Lines, one task instance per line)
//   - <prefix>.matches.jsonl (append-only JSON Lines, one match result per line)
//   - <prefix>.records.jsonl (append-only journal of anchor record upserts)
//   - <prefix>.plans.jsonl   (append-only journal of plan activations)
//
// Record and plan journals are replayed into memory at open; the last entry
// per record id wins.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	tasksFile   *os.File
	matchesFile *os.File
	recordsFile *os.File
	plansFile   *os.File

	records map[string]recordRow // last-write-wins view of the records journal
	active  map[string]bool
}

type recordRow struct {
	ID         string     `json:"id"`
	AnchorDate *time.Time `json:"anchor_date,omitempty"`
	OwnerID    string     `json:"owner_id,omitempty"`
}

type planRow struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

type taskRow struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DueDate        time.Time  `json:"due_date"`
	AnchorRecordID string     `json:"anchor_record_id"`
	AftercareYear  *int       `json:"aftercare_year,omitempty"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	HistoricalSkip bool       `json:"historical_skip"`
	DedupKey       string     `json:"dedup_key,omitempty"`
}

type matchRow struct {
	SourceID      string    `json:"source_id"`
	SourceAddress string    `json:"source_address"`
	TargetID      string    `json:"target_id"`
	TargetAddress string    `json:"target_address"`
	Score         int       `json:"score"`
	Confidence    string    `json:"confidence"`
	MatchedAt     time.Time `json:"matched_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:     log,
		records: map[string]recordRow{},
		active:  map[string]bool{},
	}

	// Replay journals before opening for append.
	_ = replayJSONL(prefix+".records.jsonl", func(b []byte) {
		var r recordRow
		if json.Unmarshal(b, &r) == nil && r.ID != "" {
			s.records[r.ID] = r
		}
	})
	_ = replayJSONL(prefix+".plans.jsonl", func(b []byte) {
		var p planRow
		if json.Unmarshal(b, &p) == nil && p.ID != "" {
			s.active[p.ID] = true
		}
	})

	var err error
	open := func(name string) *os.File {
		if err != nil {
			return nil
		}
		var f *os.File
		f, err = os.OpenFile(prefix+name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		return f
	}
	s.tasksFile = open(".tasks.jsonl")
	s.matchesFile = open(".matches.jsonl")
	s.recordsFile = open(".records.jsonl")
	s.plansFile = open(".plans.jsonl")
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range []**os.File{&s.tasksFile, &s.matchesFile, &s.recordsFile, &s.plansFile} {
		if *f != nil {
			if err := (*f).Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			*f = nil
		}
	}
	return firstErr
}

func (s *fileStore) UpsertAnchorRecords(ctx context.Context, records []aftercare.AnchorRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordsFile == nil {
		return errors.New("records journal closed")
	}
	enc := json.NewEncoder(s.recordsFile)
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		row := recordRow{ID: r.ID, AnchorDate: r.AnchorDate, OwnerID: r.OwnerID}
		if err := enc.Encode(row); err != nil {
			return err
		}
		s.records[r.ID] = row
	}
	return nil
}

func (s *fileStore) PendingAnchorRecords(ctx context.Context) ([]aftercare.AnchorRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]aftercare.AnchorRecord, 0, len(s.records))
	for id, r := range s.records {
		if s.active[id] || r.AnchorDate == nil {
			continue
		}
		out = append(out, aftercare.AnchorRecord{ID: r.ID, AnchorDate: r.AnchorDate, OwnerID: r.OwnerID})
	}
	return out, nil
}

func (s *fileStore) BulkInsertTasks(ctx context.Context, tasks []aftercare.TaskInstance) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasksFile == nil {
		return errors.New("tasks file closed")
	}
	enc := json.NewEncoder(s.tasksFile)
	for _, t := range tasks {
		row := taskRow{
			ID:             t.ID,
			Title:          t.Title,
			Description:    t.Description,
			DueDate:        t.DueDate,
			AnchorRecordID: t.AnchorRecordID,
			AftercareYear:  t.AftercareYear,
			AssignedTo:     t.AssignedTo,
			Completed:      t.Completed,
			CompletedAt:    t.CompletedAt,
			HistoricalSkip: t.HistoricalSkip,
			DedupKey:       t.DedupKey,
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) MarkPlansActive(ctx context.Context, recordIDs []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plansFile == nil {
		return errors.New("plans journal closed")
	}
	enc := json.NewEncoder(s.plansFile)
	now := time.Now()
	for _, id := range recordIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := enc.Encode(planRow{ID: id, At: now}); err != nil {
			return err
		}
		s.active[id] = true
	}
	return nil
}

func (s *fileStore) SaveMatches(ctx context.Context, matches []address.Match) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchesFile == nil {
		return errors.New("matches file closed")
	}
	enc := json.NewEncoder(s.matchesFile)
	now := time.Now()
	for _, m := range matches {
		row := matchRow{
			SourceID:      m.SourceID,
			SourceAddress: m.SourceAddress,
			TargetID:      m.TargetID,
			TargetAddress: m.TargetAddress,
			Score:         m.Score,
			Confidence:    string(m.Confidence),
			MatchedAt:     now,
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func replayJSONL(path string, apply func([]byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		apply(sc.Bytes())
	}
	return sc.Err()
}
