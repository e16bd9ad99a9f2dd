// Package activation runs scheduled aftercare activation sweeps.
//
// In daemon mode the service fires on a cron schedule and calls the
// provided Runner, which is expected to pull pending records from storage
// and activate their plans. Overlapping runs are skipped, not queued.
package activation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

// Runner performs one activation sweep.
type Runner func(ctx context.Context) error

type Config struct {
	Enabled  bool
	Schedule string // cron spec or @every interval
	Timezone string // IANA name; empty means local time
	Timeout  time.Duration
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	run    Runner
	parser cron.Parser

	c       *cron.Cron
	baseCtx context.Context // ctx passed to Start; restarts re-derive from it
	runCtx  context.Context
	cancel  context.CancelFunc
	running bool // a sweep is in flight
	runs    uint64
	skipped uint64
	lastErr error
	lastAt  time.Time
}

func New(cfg Config, log logx.Logger, run Runner) *Service {
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("service", "activation")),
		run: run,
		// SecondOptional allows both 5-field and 6-field cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. If the schedule, timezone, or enabled flag changed
// while running, the cron is restarted with the new settings.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	restart := s.c != nil &&
		(strings.TrimSpace(cfg.Schedule) != strings.TrimSpace(s.cfg.Schedule) ||
			strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone) ||
			cfg.Enabled != s.cfg.Enabled)
	s.cfg = cfg
	baseCtx := s.baseCtx
	s.mu.Unlock()

	if !restart {
		return
	}
	s.halt()
	if cfg.Enabled && baseCtx != nil && baseCtx.Err() == nil {
		s.mu.Lock()
		if s.c == nil {
			if err := s.startLocked(baseCtx); err != nil {
				s.log.Warn("restart after reload failed", logx.Err(err))
			}
		}
		s.mu.Unlock()
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Debug("disabled, not starting")
		return nil
	}
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	s.baseCtx = ctx
	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		spec = "@daily"
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return err
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		if l, lerr := time.LoadLocation(tz); lerr == nil {
			loc = l
		} else {
			s.log.Warn("bad timezone, using local", logx.String("tz", tz), logx.Err(lerr))
		}
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.c.Schedule(sched, cron.FuncJob(s.sweep))
	s.c.Start()
	s.log.Info("service started", logx.String("schedule", spec), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.halt()
}

// halt stops the cron and waits for an in-flight sweep to finish. The wait
// happens outside the lock: a running sweep needs the lock to record its
// outcome.
func (s *Service) halt() {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-c.Stop().Done()
	s.log.Info("service stopped")
}

// sweep is the cron callback. A sweep already in flight means this tick is
// skipped; activation runs can be long and must not pile up.
func (s *Service) sweep() {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		s.log.Warn("previous sweep still running, skipping tick")
		return
	}
	s.running = true
	ctx := s.runCtx
	timeout := s.cfg.Timeout
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	err := s.run(ctx)

	s.mu.Lock()
	s.running = false
	s.runs++
	s.lastErr = err
	s.lastAt = start
	s.mu.Unlock()

	if err != nil {
		s.log.Error("sweep failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Info("sweep finished", logx.Duration("took", time.Since(start)))
}

// Snapshot reports run counters for diagnostics.
type Snapshot struct {
	Enabled bool
	Running bool
	Runs    uint64
	Skipped uint64
	LastRun time.Time
	LastErr error
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Enabled: s.cfg.Enabled,
		Running: s.running,
		Runs:    s.runs,
		Skipped: s.skipped,
		LastRun: s.lastAt,
		LastErr: s.lastErr,
	}
}
