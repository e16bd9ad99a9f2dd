package config

import (
	"fmt"
	"strings"

	"github.com/markbryant-rw/aftercare/internal/aftercare"
)

// Config is the full application configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON so both formats go
// through the same strict decoder (unknown fields are rejected).
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects the task/record store. If omitted, storage is
	// disabled and only pure matching commands work.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Templates points at the YAML task template files.
	Templates TemplatesConfig `json:"templates"`

	// Activation controls batch plan activation (one-shot and daemon mode).
	Activation ActivationConfig `json:"activation"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./aftercare.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type TemplatesConfig struct {
	// Standard is the template applied to ordinary (recent) records.
	Standard string `json:"standard"`
	// Evergreen is the small rotation template for records older than the
	// evergreen threshold. Optional; without it, old records get the
	// standard template like everyone else.
	Evergreen string `json:"evergreen,omitempty"`
}

// ActivationConfig controls activation runs.
//
// Schedule only matters in daemon mode ("serve"): it is a cron spec or
// "@every" interval evaluated in Timezone. RunTimeout is a Go duration
// string bounding one run; "0s" disables the bound.
type ActivationConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// Mode decides the disposition of past-due tasks: skip|complete|include.
	Mode string `json:"mode"`

	RunTimeout string `json:"run_timeout,omitempty"`

	// ChunkRatePerSec paces bulk-insert chunks; 0 disables pacing.
	ChunkRatePerSec int `json:"chunk_rate_per_sec,omitempty"`
}

// Validate checks cross-field invariants that the strict decoder can't.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := aftercare.ParseHistoricalMode(defaultStr(c.Activation.Mode, string(aftercare.ModeSkip))); err != nil {
		return fmt.Errorf("activation.mode: %w", err)
	}
	if _, err := ParseDurationField("activation.run_timeout", c.Activation.RunTimeout); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Activation.Enabled && strings.TrimSpace(c.Templates.Standard) == "" {
		return fmt.Errorf("templates.standard is required when activation is enabled")
	}
	if c.Activation.ChunkRatePerSec < 0 {
		return fmt.Errorf("activation.chunk_rate_per_sec must be >= 0")
	}
	return nil
}

// Mode returns the parsed historical mode, defaulting to "skip" (the least
// destructive stance for historical imports).
func (c *Config) Mode() aftercare.HistoricalMode {
	m, err := aftercare.ParseHistoricalMode(defaultStr(c.Activation.Mode, string(aftercare.ModeSkip)))
	if err != nil {
		return aftercare.ModeSkip
	}
	return m
}

func defaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
