package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	if paths.ConfigDir == "" {
		t.Error("ConfigDir is empty")
	}
	if paths.DataDir == "" {
		t.Error("DataDir is empty")
	}
	if paths.CacheDir == "" {
		t.Error("CacheDir is empty")
	}
	if paths.RuntimeDir == "" {
		t.Error("RuntimeDir is empty")
	}

	// All paths should be absolute
	if !filepath.IsAbs(paths.ConfigDir) {
		t.Errorf("ConfigDir should be absolute: %s", paths.ConfigDir)
	}
	if !filepath.IsAbs(paths.DataDir) {
		t.Errorf("DataDir should be absolute: %s", paths.DataDir)
	}
}

func TestDefaultPaths_XDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG test not applicable on Windows")
	}

	// Save original env vars
	origConfigHome := os.Getenv("XDG_CONFIG_HOME")
	origDataHome := os.Getenv("XDG_DATA_HOME")
	origCacheHome := os.Getenv("XDG_CACHE_HOME")

	defer func() {
		os.Setenv("XDG_CONFIG_HOME", origConfigHome)
		os.Setenv("XDG_DATA_HOME", origDataHome)
		os.Setenv("XDG_CACHE_HOME", origCacheHome)
	}()

	// Set custom XDG paths
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	os.Setenv("XDG_DATA_HOME", "/custom/data")
	os.Setenv("XDG_CACHE_HOME", "/custom/cache")

	paths := DefaultPaths()

	if !strings.HasPrefix(paths.ConfigDir, "/custom/config") {
		t.Errorf("ConfigDir should respect XDG_CONFIG_HOME: %s", paths.ConfigDir)
	}
	if !strings.HasPrefix(paths.DataDir, "/custom/data") {
		t.Errorf("DataDir should respect XDG_DATA_HOME: %s", paths.DataDir)
	}
	if !strings.HasPrefix(paths.CacheDir, "/custom/cache") {
		t.Errorf("CacheDir should respect XDG_CACHE_HOME: %s", paths.CacheDir)
	}
}

func TestPaths_ConfigFile(t *testing.T) {
	paths := DefaultPaths()
	configFile := paths.ConfigFile()

	if !strings.HasSuffix(configFile, "config.yaml") {
		t.Errorf("ConfigFile should end with config.yaml: %s", configFile)
	}
	if !strings.Contains(configFile, "suggestengine") {
		t.Errorf("ConfigFile should contain 'suggestengine': %s", configFile)
	}
}

func TestPaths_DatabaseFile(t *testing.T) {
	paths := DefaultPaths()
	dbFile := paths.DatabaseFile()

	if !strings.HasSuffix(dbFile, "shortcuts.db") {
		t.Errorf("DatabaseFile should end with shortcuts.db: %s", dbFile)
	}
}

func TestPaths_SocketFile(t *testing.T) {
	paths := DefaultPaths()
	socketFile := paths.SocketFile()

	if !strings.HasSuffix(socketFile, "suggestengine.sock") {
		t.Errorf("SocketFile should end with suggestengine.sock: %s", socketFile)
	}
}

func TestPaths_PIDFile(t *testing.T) {
	paths := DefaultPaths()
	pidFile := paths.PIDFile()

	if !strings.HasSuffix(pidFile, "suggestengine.pid") {
		t.Errorf("PIDFile should end with suggestengine.pid: %s", pidFile)
	}
}

func TestPaths_LogDir(t *testing.T) {
	paths := DefaultPaths()
	logDir := paths.LogDir()

	if !strings.Contains(logDir, "logs") {
		t.Errorf("LogDir should contain 'logs': %s", logDir)
	}
}

func TestPaths_LogFile(t *testing.T) {
	paths := DefaultPaths()
	logFile := paths.LogFile()

	if !strings.HasSuffix(logFile, "daemon.log") {
		t.Errorf("LogFile should end with daemon.log: %s", logFile)
	}
}

func TestPaths_EnsureDirectories(t *testing.T) {
	// Create temp directory for testing
	tmpDir, err := os.MkdirTemp("", "suggestengine-paths-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create custom paths pointing to temp directory
	paths := &Paths{
		ConfigDir:  filepath.Join(tmpDir, "config", "suggestengine"),
		DataDir:    filepath.Join(tmpDir, "data", "suggestengine"),
		CacheDir:   filepath.Join(tmpDir, "cache", "suggestengine"),
		RuntimeDir: filepath.Join(tmpDir, "run", "suggestengine"),
	}

	// Ensure directories
	err = paths.EnsureDirectories()
	if err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	// Check directories exist
	dirs := []string{
		paths.ConfigDir,
		paths.DataDir,
		paths.CacheDir,
		paths.RuntimeDir,
		paths.LogDir(),
	}

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("Directory should exist: %s", dir)
		} else if !info.IsDir() {
			t.Errorf("Should be a directory: %s", dir)
		}
	}
}

func TestHomeDir(t *testing.T) {
	home := homeDir()

	if home == "" {
		t.Error("homeDir returned empty string")
	}
	if !filepath.IsAbs(home) {
		t.Errorf("homeDir should return absolute path: %s", home)
	}
}
