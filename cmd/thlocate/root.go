package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/thlocate/internal/config"
	"github.com/eargollo/thlocate/internal/versions"
)

// app carries the state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "thlocate",
		Short: "Find installed game executables by size and fingerprint",
		Long: `thlocate walks local drives looking for executables whose size and
SHA-256 match an entry of a version database (thcrap versions.js or YAML),
and reports every copy found with its build and variety label.

Run "thlocate scan" for a one-shot search or "thlocate serve" for an HTTP
API with scheduled rescans.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(newScanCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newVersionsCommand(a))
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Debug("config loaded", "path", a.configPath, "versions_file", cfg.VersionsFile,
		"concurrency", cfg.Concurrency, "cache", cfg.UseCache())
	return nil
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadVersions reads the version database named by path, or by the config
// when path is empty.
func (a *app) loadVersions(path string) (*versions.Database, error) {
	if path == "" {
		path = a.cfg.VersionsFile
	}
	vdb, err := versions.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info("version database loaded", "path", path, "entries", vdb.Len(), "games", len(vdb.Games()))
	return vdb, nil
}
