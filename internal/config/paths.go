// Package config provides the XDG-based filesystem layout for the daemon
// and CLI: where config, shortcut data, cache, and runtime files live.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all the path configurations for the daemon.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/suggestengine)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/suggestengine)
	DataDir string

	// CacheDir is the directory for cache files (~/.cache/suggestengine)
	CacheDir string

	// RuntimeDir is the directory for runtime files like sockets and PID files
	RuntimeDir string
}

// DefaultPaths returns the default paths based on XDG Base Directory spec.
// On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, "suggestengine"),
			DataDir:    filepath.Join(localAppData, "suggestengine"),
			CacheDir:   filepath.Join(localAppData, "suggestengine", "cache"),
			RuntimeDir: filepath.Join(localAppData, "suggestengine", "run"),
		}
	}

	// Unix-like systems follow XDG Base Directory spec
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		// Fallback to ~/.suggestengine/run for runtime files
		runtimeDir = filepath.Join(home, ".suggestengine", "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, "suggestengine")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "suggestengine"),
		DataDir:    filepath.Join(dataHome, "suggestengine"),
		CacheDir:   filepath.Join(cacheHome, "suggestengine"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// DatabaseFile returns the path to the ShortcutRepository's SQLite database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "shortcuts.db")
}

// SocketFile returns the path to the daemon's Unix domain socket.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.RuntimeDir, "suggestengine.sock")
}

// PIDFile returns the path to the daemon PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.RuntimeDir, "suggestengine.pid")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile returns the path to the daemon log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "daemon.log")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.CacheDir,
		p.RuntimeDir,
		p.LogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
