// Package importer reads external CRM exports and reconciles them against
// the internal record set by fuzzy address matching.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/markbryant-rw/aftercare/internal/address"
	"github.com/markbryant-rw/aftercare/internal/aftercare"
	"github.com/markbryant-rw/aftercare/internal/eventbus"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

// MatchStore is the slice of the storage layer the importer needs.
type MatchStore interface {
	SaveMatches(ctx context.Context, matches []address.Match) error
	UpsertAnchorRecords(ctx context.Context, records []aftercare.AnchorRecord) error
}

type Importer struct {
	log   logx.Logger
	bus   eventbus.Bus
	store MatchStore // nil when storage is disabled
}

func New(log logx.Logger, bus eventbus.Bus, store MatchStore) *Importer {
	return &Importer{
		log:   log.With(logx.String("component", "importer")),
		bus:   bus,
		store: store,
	}
}

// Reconcile matches every external record against the internal set and
// persists the results when a store is configured. Records below the lowest
// confidence tier are absent from the returned slice.
func (im *Importer) Reconcile(ctx context.Context, external, internal []address.Record) ([]address.Match, error) {
	matches := address.MatchSets(external, internal)

	byTier := map[address.Confidence]int{}
	for _, m := range matches {
		byTier[m.Confidence]++
	}
	im.log.Info("reconciled records",
		logx.Int("external", len(external)),
		logx.Int("internal", len(internal)),
		logx.Int("matched", len(matches)),
		logx.Int("high", byTier[address.ConfidenceHigh]),
		logx.Int("medium", byTier[address.ConfidenceMedium]),
		logx.Int("low", byTier[address.ConfidenceLow]))

	if im.store != nil && len(matches) > 0 {
		if err := im.store.SaveMatches(ctx, matches); err != nil {
			return nil, fmt.Errorf("save matches: %w", err)
		}
	}
	if im.bus != nil {
		im.bus.Publish(eventbus.Event{
			Type: "import.matched",
			Time: time.Now(),
			Data: map[string]any{"external": len(external), "matched": len(matches)},
		})
	}
	return matches, nil
}

// ImportAnchorRecords upserts anchor records into the store so activation
// sweeps can pick them up.
func (im *Importer) ImportAnchorRecords(ctx context.Context, records []aftercare.AnchorRecord) error {
	if im.store == nil {
		return fmt.Errorf("storage disabled, cannot import records")
	}
	if err := im.store.UpsertAnchorRecords(ctx, records); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	im.log.Info("imported anchor records", logx.Int("count", len(records)))
	return nil
}

// ReadRecordsCSV loads address records from a CSV with header
// id,address,owner_name,owner_email (owner columns optional).
func ReadRecordsCSV(path string) ([]address.Record, error) {
	rows, idx, err := readCSV(path, "id", "address")
	if err != nil {
		return nil, err
	}
	out := make([]address.Record, 0, len(rows))
	for i, row := range rows {
		rec := address.Record{
			ID:         field(row, idx, "id"),
			Address:    field(row, idx, "address"),
			OwnerName:  field(row, idx, "owner_name"),
			OwnerEmail: field(row, idx, "owner_email"),
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("%s: row %d: empty id", path, i+2)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadAnchorRecordsCSV loads anchor records from a CSV with header
// id,anchor_date,owner_id. anchor_date is YYYY-MM-DD and may be blank for
// records whose plan should not be activated.
func ReadAnchorRecordsCSV(path string) ([]aftercare.AnchorRecord, error) {
	rows, idx, err := readCSV(path, "id")
	if err != nil {
		return nil, err
	}
	out := make([]aftercare.AnchorRecord, 0, len(rows))
	for i, row := range rows {
		rec := aftercare.AnchorRecord{
			ID:      field(row, idx, "id"),
			OwnerID: field(row, idx, "owner_id"),
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("%s: row %d: empty id", path, i+2)
		}
		if raw := field(row, idx, "anchor_date"); raw != "" {
			d, perr := time.Parse("2006-01-02", raw)
			if perr != nil {
				return nil, fmt.Errorf("%s: row %d: anchor_date %q: %w", path, i+2, raw, perr)
			}
			rec.AnchorDate = &d
		}
		out = append(out, rec)
	}
	return out, nil
}

// readCSV reads all data rows and returns a header-name -> column index map.
// Required headers must be present; extra columns are ignored.
func readCSV(path string, required ...string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range required {
		if _, ok := idx[req]; !ok {
			return nil, nil, fmt.Errorf("%s: missing required column %q", path, req)
		}
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: read row: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, idx, nil
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
