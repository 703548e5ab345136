package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/config"
	"github.com/runger/suggestengine/internal/daemon"
	"github.com/runger/suggestengine/internal/engine/shortcut"
	"github.com/runger/suggestengine/internal/enginecfg"
	applog "github.com/runger/suggestengine/internal/obslog"
)

var serveCmd = &cobra.Command{
	Use:    "serve",
	Short:  "run the daemon in the foreground (internal use)",
	Hidden: true,
	RunE:   runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to prepare directories: %w", err)
	}

	cfg, err := enginecfg.Load(paths.ConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := applog.New(&applog.Config{Debug: cfg.Daemon.LogLevel == "debug"})

	dbPath := cfg.Store.DatabasePath
	if dbPath == "" {
		dbPath = paths.DatabaseFile()
	}
	store, err := shortcut.Open(cmd.Context(), shortcut.Options{
		Logger:            logger,
		Path:              dbPath,
		EnableRecovery:    true,
		RunIntegrityCheck: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open shortcut store: %w", err)
	}
	defer store.Close()

	repo := shortcut.NewRepository(store)
	registry := buildRegistry(cfg.Sources)

	serverCfg := &daemon.ServerConfig{
		Repo:         repo,
		Registry:     registry,
		EngineConfig: cfg.Engine.ToSessionConfig(),
		Paths:        paths,
		Logger:       logger,
		IdleTimeout:  time.Duration(cfg.Daemon.IdleTimeoutMins) * time.Minute,
		ReloadFn: func() error {
			reloaded, err := enginecfg.Load(paths.ConfigFile())
			if err != nil {
				return err
			}
			cfg = reloaded
			return nil
		},
	}

	return daemon.Run(context.Background(), serverCfg)
}
