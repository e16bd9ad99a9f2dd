package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/markbryant-rw/aftercare/internal/address"
	"github.com/markbryant-rw/aftercare/internal/aftercare"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertAnchorRecords(ctx context.Context, records []aftercare.AnchorRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO anchor_records(id, anchor_date, owner_id) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET anchor_date=excluded.anchor_date, owner_id=excluded.owner_id`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.ID, nullTime(r.AnchorDate), nullStr(r.OwnerID)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) PendingAnchorRecords(ctx context.Context) ([]aftercare.AnchorRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, anchor_date, owner_id FROM anchor_records
		 WHERE plan_active = 0 AND anchor_date IS NOT NULL
		 ORDER BY anchor_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []aftercare.AnchorRecord
	for rows.Next() {
		var (
			id      string
			anchor  sql.NullString
			ownerID sql.NullString
		)
		if err := rows.Scan(&id, &anchor, &ownerID); err != nil {
			return nil, err
		}
		rec := aftercare.AnchorRecord{ID: id, OwnerID: ownerID.String}
		if anchor.Valid {
			at, err := time.Parse(time.RFC3339Nano, anchor.String)
			if err != nil {
				s.log.Warn("skipping anchor record with unparseable date",
					logx.String("record", id), logx.String("anchor_date", anchor.String))
				continue
			}
			rec.AnchorDate = &at
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) BulkInsertTasks(ctx context.Context, tasks []aftercare.TaskInstance) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks(id, title, description, due_date, anchor_record_id, aftercare_year,
		                   assigned_to, completed, completed_at, historical_skip, dedup_key)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tasks {
		var year any
		if t.AftercareYear != nil {
			year = *t.AftercareYear
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Title, nullStr(t.Description), t.DueDate.Format(time.RFC3339Nano),
			t.AnchorRecordID, year, nullStr(t.AssignedTo),
			boolInt(t.Completed), nullTime(t.CompletedAt), boolInt(t.HistoricalSkip),
			nullStr(t.DedupKey),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) MarkPlansActive(ctx context.Context, recordIDs []string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Format(time.RFC3339Nano)
	stmt, err := tx.PrepareContext(ctx,
		`UPDATE anchor_records SET plan_active = 1, plan_activated_at = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range recordIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SaveMatches(ctx context.Context, matches []address.Match) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches(source_id, source_address, target_id, target_address, score, confidence, matched_at)
		 VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339Nano)
	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx,
			m.SourceID, m.SourceAddress, m.TargetID, m.TargetAddress,
			m.Score, string(m.Confidence), now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
