// Package log provides JSON-lines structured logging for the suggestion
// engine daemon.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
		Debug:  false,
	}
}

// New creates a new JSON-lines structured logger. Output format:
//
//	{"ts":"2024-01-15T10:30:00Z","level":"INFO","msg":"daemon started","version":"1.2.0","pid":12345}
//
// Log levels:
//   - debug: Verbose (enabled via SUGGESTENGINE_DEBUG=1)
//   - info: Startup, shutdown, config reload
//   - warn: Non-fatal issues (source timeouts, dropped events)
//   - error: Fatal issues requiring attention
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	// Create JSON handler with timestamp formatted as "ts"
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename "time" to "ts" for spec compliance
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			// Rename "msg" to keep consistency
			if a.Key == slog.MessageKey {
				a.Key = "msg"
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(output, opts)
	return slog.New(handler)
}

// NewFromEnv creates a logger configured from environment variables.
// SUGGESTENGINE_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("SUGGESTENGINE_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// StartupInfo holds information to log at daemon startup: version and git
// commit, the config file path loaded, the shortcut database path and
// schema version, and the socket path.
type StartupInfo struct {
	Version       string
	GitCommit     string
	ConfigPath    string
	DatabasePath  string
	SchemaVersion int
	SocketPath    string
	PID           int
}

// LogStartup logs daemon startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Info("daemon started",
		"version", info.Version,
		"git_commit", info.GitCommit,
		"config_path", info.ConfigPath,
		"database_path", info.DatabasePath,
		"schema_version", info.SchemaVersion,
		"socket_path", info.SocketPath,
		"pid", info.PID,
	)
}

// LogShutdown logs daemon shutdown.
func LogShutdown(logger *slog.Logger, reason string) {
	logger.Info("daemon shutting down", "reason", reason)
}

// LogConfigReload logs configuration reload.
func LogConfigReload(logger *slog.Logger, configPath string) {
	logger.Info("configuration reloaded", "config_path", configPath)
}

// LogEventDropped logs when an event is dropped.
func LogEventDropped(logger *slog.Logger, reason string) {
	logger.Warn("event dropped", "reason", reason)
}

// LogSourceTimeout logs when a suggestion source exceeds its per-query
// deadline and is dropped from a fan-out.
func LogSourceTimeout(logger *slog.Logger, componentID string, timeoutMs int64) {
	logger.Warn("source query timed out", "source", componentID, "timeout_ms", timeoutMs)
}

// LogSQLiteError logs SQLite errors.
func LogSQLiteError(logger *slog.Logger, operation string, err error) {
	logger.Error("sqlite error", "operation", operation, "error", err)
}

// LogCorruptionDetected logs when database corruption is detected.
func LogCorruptionDetected(logger *slog.Logger, dbPath string, reason string) {
	logger.Error("database corruption detected",
		"database_path", dbPath,
		"reason", reason,
	)
}

// LogCorruptionRecovered logs successful corruption recovery.
func LogCorruptionRecovered(logger *slog.Logger, dbPath string, backupPath string) {
	logger.Info("database corruption recovered",
		"database_path", dbPath,
		"backup_path", backupPath,
	)
}

// LogCorruptionRecoveryFailed logs when corruption recovery fails.
func LogCorruptionRecoveryFailed(logger *slog.Logger, dbPath string, err error) {
	logger.Error("database corruption recovery failed",
		"database_path", dbPath,
		"error", err,
	)
}

// LogIntegrityCheckPassed logs when an integrity check passes.
func LogIntegrityCheckPassed(logger *slog.Logger, dbPath string) {
	logger.Debug("database integrity check passed",
		"database_path", dbPath,
	)
}

// LogIntegrityCheckFailed logs when an integrity check fails.
func LogIntegrityCheckFailed(logger *slog.Logger, dbPath string, err error) {
	logger.Error("database integrity check failed",
		"database_path", dbPath,
		"error", err,
	)
}
