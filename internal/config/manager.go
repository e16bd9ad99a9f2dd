package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/markbryant-rw/aftercare/pkg/logx"
)

// Manager owns the current configuration and notifies subscribers when the
// file changes on disk.
type Manager struct {
	mu   sync.RWMutex
	path string
	cur  *Config
	hash uint64
	log  logx.Logger

	subMu sync.Mutex
	subs  map[int]chan *Config
	nextS int

	watchOnce sync.Once
	cancel    context.CancelFunc
}

func NewManager(path string, log logx.Logger) *Manager {
	return &Manager{
		path: path,
		log:  log.With(logx.String("component", "config")),
		subs: make(map[int]chan *Config),
	}
}

// Parse decodes and validates config bytes. Decoding is strict: unknown
// fields and trailing content are rejected so typos fail loudly instead of
// being silently ignored.
func Parse(path string, data []byte) (*Config, error) {
	jsonBytes, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s config: %w", format, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("config has trailing content")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the file, parses it, and commits it as the current config.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(m.path, data)
	if err != nil {
		return nil, err
	}
	m.commit(cfg, contentHash(data))
	return cfg, nil
}

// Get returns the last committed config, or nil before the first Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func (m *Manager) commit(cfg *Config, h uint64) {
	m.mu.Lock()
	m.cur = cfg
	m.hash = h
	m.mu.Unlock()
	m.publish(cfg)
}

// Subscribe returns a channel that receives each newly committed config.
// Slow subscribers drop updates rather than blocking the watcher.
func (m *Manager) Subscribe() (<-chan *Config, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextS
	m.nextS++
	ch := make(chan *Config, 1)
	m.subs[id] = ch
	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Watch starts an fsnotify watcher on the config file's directory. Edits are
// debounced (editors often write in several events) and content-hashed so a
// touch without change does not republish. Invalid edits keep the last good
// config and log the error.
func (m *Manager) Watch(ctx context.Context) error {
	var startErr error
	m.watchOnce.Do(func() {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			startErr = fmt.Errorf("fsnotify: %w", err)
			return
		}
		dir := filepath.Dir(m.path)
		if err := w.Add(dir); err != nil {
			w.Close()
			startErr = fmt.Errorf("watch %s: %w", dir, err)
			return
		}

		wctx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		go m.watchLoop(wctx, w)
	})
	return startErr
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.log.Warn("config watcher error", logx.Err(err))
		case <-timerC:
			timer = nil
			timerC = nil
			m.reload()
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warn("config reload read failed", logx.Err(err))
		return
	}
	h := contentHash(data)
	m.mu.RLock()
	same := h == m.hash
	m.mu.RUnlock()
	if same {
		return
	}
	cfg, err := Parse(m.path, data)
	if err != nil {
		m.log.Warn("config reload rejected, keeping previous", logx.Err(err))
		return
	}
	m.commit(cfg, h)
	m.log.Info("config reloaded", logx.String("path", m.path))
}

// Stop halts the watcher if one was started.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
