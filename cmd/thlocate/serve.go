package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/thlocate/internal/api"
	"github.com/eargollo/thlocate/internal/db"
	"github.com/eargollo/thlocate/internal/filelock"
	"github.com/eargollo/thlocate/internal/scan"
	"github.com/eargollo/thlocate/internal/scheduler"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		versionsFile string
		addr         string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled rescans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(versionsFile)
		},
	}
	cmd.Flags().StringVar(&versionsFile, "versions", "", "version database (versions.js or .yaml); overrides config")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; overrides config http_addr")
	return cmd
}

func (a *app) serve(versionsFile string) error {
	cfg := a.cfg
	slog.Info("thlocate starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"scan_paths", cfg.ScanPaths)

	// One server per database file.
	lock := filelock.New(cfg.DBPath)
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("another thlocate server is using %s", cfg.DBPath)
		}
		return err
	}
	defer lock.Unlock()

	vdb, err := a.loadVersions(versionsFile)
	if err != nil {
		return err
	}

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Mark any scans that were 'running' when last process exited as failed.
	if n, err := scan.MarkStaleScansFailed(database); err != nil {
		slog.Warn("mark stale scans", "error", err)
	} else if n > 0 {
		slog.Info("marked stale scans failed", "count", n)
	}

	// ── Scan manager ───────────────────────────────────────────────────────
	scanCfg := scan.DefaultConfig()
	scanCfg.Concurrency = cfg.Concurrency
	scanCfg.Extension = cfg.ExecutableExt
	scanCfg.Excludes = cfg.ExcludePaths
	if cfg.UseCache() {
		scanCfg.Cache = scan.NewSQLCache(database)
	}
	mgr := scan.NewManager(database, vdb, cfg.ScanPaths, scan.NewSelected(cfg.SelectedGames...), scanCfg)

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	if cfg.Schedule != "" {
		if err := sched.SetJob(cfg.Schedule, func() {
			slog.Info("scheduled scan triggered")
			if _, err := mgr.Start("schedule"); err != nil {
				slog.Warn("scheduled scan start", "error", err)
			}
		}); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(cfg.HTTPAddr, database, mgr, sched, version)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("thlocate stopped")
	return nil
}
