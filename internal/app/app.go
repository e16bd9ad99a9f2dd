// Package app wires configuration, logging, storage, and services into a
// running aftercare application.
package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/markbryant-rw/aftercare/internal/aftercare"
	"github.com/markbryant-rw/aftercare/internal/config"
	"github.com/markbryant-rw/aftercare/internal/eventbus"
	"github.com/markbryant-rw/aftercare/internal/importer"
	"github.com/markbryant-rw/aftercare/internal/services/activation"
	"github.com/markbryant-rw/aftercare/internal/storage"
	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	Log    logx.Logger

	Bus      eventbus.Bus
	Store    storage.Store // nil when storage is disabled
	Engine   *aftercare.Engine
	Importer *importer.Importer

	activation *activation.Service
	unsubCfg   func()
}

// New builds the application from a config file. The returned App owns the
// log and storage handles; call Stop to release them.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath, logx.NewConsole("info"))
	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		Log:    log,
		Bus:    eventbus.New(),
	}

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			a.Stop(context.Background())
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log)
		if err != nil {
			a.Stop(context.Background())
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Store = st
	}

	a.Engine = aftercare.NewEngine(a.Store, log, a.Bus)
	a.Importer = importer.New(log, a.Bus, a.Store)
	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.cfgMgr.Get() }

// Start brings up background services: the config watcher and, when enabled,
// the scheduled activation sweeps.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	timeout, err := config.ParseDurationField("activation.run_timeout", cfg.Activation.RunTimeout)
	if err != nil {
		return err
	}
	a.activation = activation.New(activation.Config{
		Enabled:  cfg.Activation.Enabled,
		Schedule: cfg.Activation.Schedule,
		Timezone: cfg.Activation.Timezone,
		Timeout:  timeout,
	}, a.Log, func(runCtx context.Context) error {
		_, err := a.ActivateOnce(runCtx)
		return err
	})
	if err := a.activation.Start(ctx); err != nil {
		return fmt.Errorf("start activation service: %w", err)
	}

	if err := a.cfgMgr.Watch(ctx); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	updates, unsub := a.cfgMgr.Subscribe()
	a.unsubCfg = unsub
	go a.applyLoop(ctx, updates)

	events, unsubEvents := a.Bus.Subscribe(16)
	go func() {
		defer unsubEvents()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.Log.Info("event", logx.String("type", ev.Type), logx.Any("data", ev.Data))
			}
		}
	}()

	a.Log.Info("app started", logx.Bool("activation", cfg.Activation.Enabled))
	return nil
}

func (a *App) applyLoop(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.apply(cfg)
		}
	}
}

// apply pushes a reloaded config into the running services. Storage driver
// changes require a restart and are ignored here.
func (a *App) apply(cfg *config.Config) {
	a.logSvc.Apply(logConfig(cfg))
	if a.activation == nil {
		return
	}
	timeout, err := config.ParseDurationField("activation.run_timeout", cfg.Activation.RunTimeout)
	if err != nil {
		a.Log.Warn("reload: bad run_timeout, keeping previous", logx.Err(err))
		return
	}
	a.activation.Apply(activation.Config{
		Enabled:  cfg.Activation.Enabled,
		Schedule: cfg.Activation.Schedule,
		Timezone: cfg.Activation.Timezone,
		Timeout:  timeout,
	})
}

// ActivateOnce runs one activation sweep: pull pending anchor records from
// storage and activate their plans with the configured templates.
func (a *App) ActivateOnce(ctx context.Context) (aftercare.Summary, error) {
	var sum aftercare.Summary
	if a.Store == nil {
		return sum, fmt.Errorf("storage disabled, nothing to sweep")
	}
	records, err := a.Store.PendingAnchorRecords(ctx)
	if err != nil {
		return sum, fmt.Errorf("pending records: %w", err)
	}
	if len(records) == 0 {
		a.Log.Debug("no pending records")
		return sum, nil
	}
	return a.ActivateRecords(ctx, records)
}

// ActivateRecords activates plans for an explicit record set, bypassing the
// pending-records query. Used by the one-shot CLI path.
func (a *App) ActivateRecords(ctx context.Context, records []aftercare.AnchorRecord) (aftercare.Summary, error) {
	var sum aftercare.Summary
	cfg := a.cfgMgr.Get()

	if strings.TrimSpace(cfg.Templates.Standard) == "" {
		return sum, fmt.Errorf("templates.standard is not configured")
	}
	tpl, err := aftercare.LoadTemplate(cfg.Templates.Standard)
	if err != nil {
		return sum, fmt.Errorf("load standard template: %w", err)
	}
	var evergreen *aftercare.TaskTemplate
	if p := strings.TrimSpace(cfg.Templates.Evergreen); p != "" {
		ev, err := aftercare.LoadTemplate(p)
		if err != nil {
			return sum, fmt.Errorf("load evergreen template: %w", err)
		}
		evergreen = &ev
	}

	opts := aftercare.Options{Mode: cfg.Mode()}
	if r := cfg.Activation.ChunkRatePerSec; r > 0 {
		opts.ChunkLimiter = rate.NewLimiter(rate.Limit(r), 1)
	}
	return a.Engine.Activate(ctx, records, tpl, evergreen, opts)
}

// Stop shuts down services and releases storage and log handles.
func (a *App) Stop(ctx context.Context) {
	if a.activation != nil {
		a.activation.Stop(ctx)
	}
	if a.unsubCfg != nil {
		a.unsubCfg()
	}
	a.cfgMgr.Stop()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("storage close", logx.Err(err))
		}
	}
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
}
