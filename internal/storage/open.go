package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/markbryant-rw/aftercare/internal/address"
	"github.com/markbryant-rw/aftercare/internal/aftercare"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

// Store is the persistence API used by the engine, importer and services.
// It satisfies aftercare.TaskSink.
type Store interface {
	UpsertAnchorRecords(ctx context.Context, records []aftercare.AnchorRecord) error
	PendingAnchorRecords(ctx context.Context) ([]aftercare.AnchorRecord, error)
	BulkInsertTasks(ctx context.Context, tasks []aftercare.TaskInstance) error
	MarkPlansActive(ctx context.Context, recordIDs []string) error
	SaveMatches(ctx context.Context, matches []address.Match) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
