// Package enginecfg holds the YAML-backed configuration consumed by
// SessionManager at startup: which sources are enabled and in what promoted
// order preference, plus the SessionEngine tunables from spec section 6.
// Shaped after internal/config/config.go's nested-struct-with-yaml-tags
// pattern and its load-with-defaults-then-validate flow.
package enginecfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runger/suggestengine/internal/engine/session"
)

// SourceDef describes one enabled source by component id. Concrete wiring
// (which Go type that id resolves to) happens in cmd/suggestd; this config
// only records which ids are turned on and which one is the web source.
type SourceDef struct {
	ComponentID string `yaml:"component_id"`
	Label       string `yaml:"label"`
	Icon        string `yaml:"icon"`
}

// EnabledSources is the SearchSettings-equivalent: the set of sources a
// session is allowed to query, and which of them (if any) is the web
// source that gets first promoted slot and the pinned-to-bottom row.
type EnabledSources struct {
	Sources   []SourceDef `yaml:"sources"`
	WebSource string      `yaml:"web_source"`
}

// Engine holds the SessionEngine tunables. Zero values are backfilled from
// session's package defaults by ApplyDefaults.
type Engine struct {
	QueryLimit           int   `yaml:"query_limit"`
	MaxPromoted          int   `yaml:"max_promoted"`
	MaxResultsPerSource  int   `yaml:"max_results_per_source"`
	PromotedDeadlineMs   int64 `yaml:"promoted_deadline_ms"`
	SourceTimeoutMs      int   `yaml:"source_timeout_ms"`
	PrefillMs            int   `yaml:"prefill_ms"`
	CursorNotifyWindowMs int   `yaml:"cursor_notify_window_ms"`
}

// ToSessionConfig converts the loaded tunables into a session.Config.
// Sources and WebSource are left zero-valued: the Manager fills those in
// per session from the SourceRegistry and the current click ranking.
func (e Engine) ToSessionConfig() session.Config {
	return session.Config{
		QueryLimit:           e.QueryLimit,
		MaxPromoted:          e.MaxPromoted,
		MaxResultsPerSource:  e.MaxResultsPerSource,
		PromotedDeadlineMs:   e.PromotedDeadlineMs,
		SourceTimeout:        time.Duration(e.SourceTimeoutMs) * time.Millisecond,
		PrefillMs:            time.Duration(e.PrefillMs) * time.Millisecond,
		CursorNotifyWindowMs: time.Duration(e.CursorNotifyWindowMs) * time.Millisecond,
	}
}

// Daemon holds daemon process settings.
type Daemon struct {
	SocketPath      string `yaml:"socket_path"`
	IdleTimeoutMins int    `yaml:"idle_timeout_mins"`
	LogLevel        string `yaml:"log_level"`
}

// Store holds ShortcutRepository settings.
type Store struct {
	DatabasePath           string `yaml:"database_path"`
	WALCheckpointIntervalS int    `yaml:"wal_checkpoint_interval_s"`
}

// Config is the daemon's top-level configuration document.
type Config struct {
	Engine  Engine         `yaml:"engine"`
	Daemon  Daemon         `yaml:"daemon"`
	Store   Store          `yaml:"store"`
	Sources EnabledSources `yaml:"sources"`
}

// DefaultConfig returns the configuration used when no file is present,
// or to backfill zero-valued fields loaded from a partial file.
func DefaultConfig() *Config {
	return &Config{
		Engine: Engine{
			QueryLimit:           session.MaxResultsPerSource,
			MaxPromoted:          session.NumPromoted,
			MaxResultsPerSource:  session.MaxResultsPerSource,
			PromotedDeadlineMs:   session.PromotedDeadlineMs,
			SourceTimeoutMs:      10000,
			PrefillMs:            400,
			CursorNotifyWindowMs: 100,
		},
		Daemon: Daemon{
			SocketPath:      "",
			IdleTimeoutMins: 30,
			LogLevel:        "info",
		},
		Store: Store{
			DatabasePath:           "",
			WALCheckpointIntervalS: 300,
		},
		Sources: EnabledSources{},
	}
}

// Load reads a YAML config from path, backfilling missing fields with
// DefaultConfig and applying env var overrides. A missing file is not an
// error: defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config: %w", err)
	}

	cfg.applyDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	return cfg, nil
}

// applyDefaults backfills any zero-valued tunable left unset by a partial
// YAML document, the way config.go's DefaultConfig()-then-unmarshal flow
// implicitly does for its nested structs.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Engine.QueryLimit == 0 {
		c.Engine.QueryLimit = d.Engine.QueryLimit
	}
	if c.Engine.MaxPromoted == 0 {
		c.Engine.MaxPromoted = d.Engine.MaxPromoted
	}
	if c.Engine.MaxResultsPerSource == 0 {
		c.Engine.MaxResultsPerSource = d.Engine.MaxResultsPerSource
	}
	if c.Engine.PromotedDeadlineMs == 0 {
		c.Engine.PromotedDeadlineMs = d.Engine.PromotedDeadlineMs
	}
	if c.Engine.SourceTimeoutMs == 0 {
		c.Engine.SourceTimeoutMs = d.Engine.SourceTimeoutMs
	}
	if c.Engine.PrefillMs == 0 {
		c.Engine.PrefillMs = d.Engine.PrefillMs
	}
	if c.Engine.CursorNotifyWindowMs == 0 {
		c.Engine.CursorNotifyWindowMs = d.Engine.CursorNotifyWindowMs
	}
	if c.Daemon.LogLevel == "" {
		c.Daemon.LogLevel = d.Daemon.LogLevel
	}
	if c.Store.WALCheckpointIntervalS == 0 {
		c.Store.WALCheckpointIntervalS = d.Store.WALCheckpointIntervalS
	}
}

// ApplyEnvOverrides applies environment variable overrides, mirroring
// config.go's CLAI_* convention.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SUGGESTENGINE_DEBUG"); v == "1" || v == "true" {
		c.Daemon.LogLevel = "debug"
	}
	if v := os.Getenv("SUGGESTENGINE_SOCKET_PATH"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("SUGGESTENGINE_LOG_LEVEL"); isValidLogLevel(v) {
		c.Daemon.LogLevel = v
	}
}

// Validate checks that tunables are in sane ranges.
func (c *Config) Validate() error {
	if c.Engine.MaxPromoted < 1 {
		return fmt.Errorf("engine.max_promoted must be >= 1")
	}
	if c.Engine.MaxResultsPerSource < 1 {
		return fmt.Errorf("engine.max_results_per_source must be >= 1")
	}
	if c.Engine.PromotedDeadlineMs < 1 {
		return fmt.Errorf("engine.promoted_deadline_ms must be >= 1")
	}
	if c.Daemon.IdleTimeoutMins < 0 {
		return fmt.Errorf("daemon.idle_timeout_mins must be >= 0")
	}
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
