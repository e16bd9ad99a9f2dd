package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/markbryant-rw/aftercare/internal/address"
	"github.com/markbryant-rw/aftercare/internal/aftercare"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

func openTestFileStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "aftercare.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st == nil {
		t.Fatal("expected enabled store")
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("empty driver should disable storage, got (%v, %v)", st, err)
	}
	if _, err := Open(Config{Driver: "oracle"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStorePendingRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	st := openTestFileStore(t, dir)
	defer st.Close()

	anchored := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []aftercare.AnchorRecord{
		{ID: "r1", AnchorDate: &anchored, OwnerID: "agent-1"},
		{ID: "r2"}, // no anchor date: never pending
		{ID: "r3", AnchorDate: &anchored},
	}
	if err := st.UpsertAnchorRecords(ctx, records); err != nil {
		t.Fatalf("UpsertAnchorRecords: %v", err)
	}
	if err := st.MarkPlansActive(ctx, []string{"r3"}); err != nil {
		t.Fatalf("MarkPlansActive: %v", err)
	}

	pending, err := st.PendingAnchorRecords(ctx)
	if err != nil {
		t.Fatalf("PendingAnchorRecords: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r1" {
		t.Fatalf("expected only r1 pending, got %+v", pending)
	}
}

func TestFileStoreJournalReplay(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	anchored := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := openTestFileStore(t, dir)
	if err := st.UpsertAnchorRecords(ctx, []aftercare.AnchorRecord{{ID: "r1", AnchorDate: &anchored}}); err != nil {
		t.Fatalf("UpsertAnchorRecords: %v", err)
	}
	if err := st.MarkPlansActive(ctx, []string{"r1"}); err != nil {
		t.Fatalf("MarkPlansActive: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh store over the same prefix must see the journaled state.
	st2 := openTestFileStore(t, dir)
	defer st2.Close()
	pending, err := st2.PendingAnchorRecords(ctx)
	if err != nil {
		t.Fatalf("PendingAnchorRecords: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("activated record must stay non-pending after reopen, got %+v", pending)
	}
}

func TestFileStoreAppendsTasksAndMatches(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	st := openTestFileStore(t, dir)
	defer st.Close()

	year := 1
	tasks := []aftercare.TaskInstance{
		{ID: "t1", Title: "call", DueDate: time.Now(), AnchorRecordID: "r1", AftercareYear: &year},
		{ID: "t2", Title: "card", DueDate: time.Now(), AnchorRecordID: "r1", HistoricalSkip: true},
	}
	if err := st.BulkInsertTasks(ctx, tasks); err != nil {
		t.Fatalf("BulkInsertTasks: %v", err)
	}
	if err := st.SaveMatches(ctx, []address.Match{
		{SourceID: "s1", TargetID: "i1", Score: 85, Confidence: address.ConfidenceMedium},
	}); err != nil {
		t.Fatalf("SaveMatches: %v", err)
	}

	if got := countLines(t, filepath.Join(dir, "aftercare.tasks.jsonl")); got != 2 {
		t.Fatalf("expected 2 task lines, got %d", got)
	}
	if got := countLines(t, filepath.Join(dir, "aftercare.matches.jsonl")); got != 1 {
		t.Fatalf("expected 1 match line, got %d", got)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return n
}
