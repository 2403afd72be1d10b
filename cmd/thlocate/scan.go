package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/eargollo/thlocate/internal/db"
	"github.com/eargollo/thlocate/internal/filelock"
	"github.com/eargollo/thlocate/internal/scan"
)

type scanOptions struct {
	versionsFile string
	selected     []string
	output       string
	noCache      bool
	concurrency  int
}

func newScanCommand(a *app) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Search a directory, or every local drive, for known executables",
		Long: `Scan walks dir (or the configured scan_paths, or every local fixed drive)
and prints each executable whose size and SHA-256 match the version database.

Results are written as JSON {game: {path: label}} to --output; "-" prints
them to stdout instead of the summary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.versionsFile, "versions", "", "version database (versions.js or .yaml); overrides config")
	cmd.Flags().StringArrayVar(&opts.selected, "select", nil, "game already selected; never reported (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "results file; overrides config output_path")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "hash every candidate instead of using the hash cache")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "maximum directory workers; overrides config")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, opts *scanOptions, args []string) error {
	cfg := a.cfg

	vdb, err := a.loadVersions(opts.versionsFile)
	if err != nil {
		return err
	}

	scanCfg := scan.DefaultConfig()
	scanCfg.Extension = cfg.ExecutableExt
	scanCfg.Concurrency = cfg.Concurrency
	if opts.concurrency > 0 {
		scanCfg.Concurrency = opts.concurrency
	}
	scanCfg.Excludes = cfg.ExcludePaths

	if cfg.UseCache() && !opts.noCache {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open hash cache: %w", err)
		}
		defer database.Close()
		if err := db.RunMigrations(database); err != nil {
			return fmt.Errorf("migrate hash cache: %w", err)
		}
		scanCfg.Cache = scan.NewSQLCache(database)
	}

	roots := cfg.ScanPaths
	if len(args) == 1 {
		roots = []string{args[0]}
	}
	selected := scan.NewSelected(append(append([]string(nil), cfg.SelectedGames...), opts.selected...)...)

	progress := &scan.Progress{}
	stop := make(chan struct{})
	done := make(chan struct{})
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		go func() {
			defer close(done)
			renderProgress(os.Stderr, progress, stop)
		}()
	} else {
		close(done)
	}

	start := time.Now()
	results, err := scan.New(vdb, scanCfg).Run(roots, selected, progress)
	close(stop)
	<-done
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	data = append(data, '\n')

	output := cfg.OutputPath
	if opts.output != "" {
		output = opts.output
	}
	if output == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := filelock.LockAndWrite(output, data); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	printSummary(cmd.OutOrStdout(), results, progress, time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", output)
	return nil
}

// renderProgress rewrites a single status line until stop is closed.
func renderProgress(w io.Writer, p *scan.Progress, stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprintf(w, "\r\033[K%s dirs  %s files  %s hashed  %d found  %d workers",
				humanize.Comma(p.DirsScanned.Load()),
				humanize.Comma(p.FilesSeen.Load()),
				humanize.IBytes(uint64(p.BytesHashed.Load())),
				p.Matched.Load(),
				p.ActiveWorkers.Load())
		case <-stop:
			fmt.Fprint(w, "\r\033[K")
			return
		}
	}
}

func printSummary(w io.Writer, results scan.Results, p *scan.Progress, elapsed time.Duration) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	games := make([]string, 0, len(results))
	for game := range results {
		games = append(games, game)
	}
	sort.Strings(games)

	if len(games) == 0 {
		yellow.Fprintln(w, "No known executables found.")
	}
	for _, game := range games {
		bold.Fprintln(w, game)
		paths := make([]string, 0, len(results[game]))
		for path := range results[game] {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(w, "  %s  %s\n", green.Sprint(results[game][path]), path)
		}
	}

	faint.Fprintf(w, "%d copies of %d games in %s (%s dirs, %s hashed, %d cache hits, %d errors)\n",
		results.Paths(), len(games), elapsed.Round(time.Millisecond),
		humanize.Comma(p.DirsScanned.Load()),
		humanize.IBytes(uint64(p.BytesHashed.Load())),
		p.CacheHits.Load(),
		p.Errors.Load())
}
