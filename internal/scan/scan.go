package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"github.com/eargollo/thlocate/internal/versions"
)

// ErrNoDatabase is returned when a scan is started without a version database.
var ErrNoDatabase = errors.New("no version database loaded")

// Config holds scan tuning parameters.
type Config struct {
	// Concurrency is the maximum number of directory workers.
	Concurrency int
	// Extension is the executable file extension, compared case-insensitively.
	Extension string
	// Excludes are paths (files or directories) that are never visited.
	Excludes []string
	Hasher   Hasher
	// Cache is optional; nil hashes every size-matched candidate.
	Cache  HashCache
	Report ErrorReporter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		Extension:   ".exe",
		Hasher:      SHA256{},
	}
}

// Scanner locates known game executables below a set of roots.
// A Scanner may be reused; each Run gets its own state.
type Scanner struct {
	db  *versions.Database
	cfg Config
}

// New creates a Scanner. Zero fields in cfg take their DefaultConfig value.
func New(db *versions.Database, cfg Config) *Scanner {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Extension == "" {
		cfg.Extension = def.Extension
	}
	if cfg.Hasher == nil {
		cfg.Hasher = def.Hasher
	}
	if cfg.Report == nil {
		cfg.Report = logErrors
	}
	return &Scanner{db: db, cfg: cfg}
}

// Search scans root, or every local fixed drive when root is empty, with the
// default configuration.
func Search(root string, selected Selected, db *versions.Database) (Results, error) {
	var roots []string
	if root != "" {
		roots = []string{root}
	}
	return New(db, DefaultConfig()).Run(roots, selected, nil)
}

// Run walks every root and blocks until all workers, including the ones they
// spawned, have finished. With no roots it scans LocalRoots. Directory and
// file errors are reported and skipped; the only errors returned happen
// before any directory is read. progress may be nil.
func (s *Scanner) Run(roots []string, selected Selected, progress *Progress) (Results, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	if progress == nil {
		progress = &Progress{}
	}

	excludes := s.cfg.Excludes
	if len(roots) == 0 {
		local, err := LocalRoots()
		if err != nil {
			return nil, fmt.Errorf("enumerate local roots: %w", err)
		}
		roots = local
		excludes = append(append([]string(nil), excludes...), systemExcludes...)
	}

	r := &run{
		matcher: &matcher{
			db:       s.db,
			hasher:   s.cfg.Hasher,
			cache:    s.cfg.Cache,
			selected: selected,
			reg:      newRegistry(),
			progress: progress,
			report:   s.cfg.Report,
		},
		slots:    semaphore.NewWeighted(int64(s.cfg.Concurrency)),
		excludes: make(map[string]struct{}, len(excludes)),
		ext:      s.cfg.Extension,
	}
	// Walked paths are absolute, so relative excludes are resolved the same way.
	for _, p := range excludes {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		r.excludes[normalize(p)] = struct{}{}
	}

	start := time.Now()
	slog.Info("scan started", "roots", roots, "concurrency", s.cfg.Concurrency,
		"sizes", fmt.Sprintf("%d-%d", s.db.MinSize(), s.db.MaxSize()))

	// Roots wait for a slot like everything else. Acquire with a background
	// context cannot fail.
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			progress.Errors.Add(1)
			r.report(normalize(root), "walk", err.Error())
			continue
		}
		if _, excluded := r.excludes[normalize(abs)]; excluded {
			continue
		}
		_ = r.slots.Acquire(context.Background(), 1)
		r.spawn(abs)
	}
	r.wg.Wait()

	results := r.reg.snapshot()
	slog.Info("scan finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"hashed", humanize.IBytes(uint64(progress.BytesHashed.Load())),
		"games", len(results),
		"progress", progress)
	return results, nil
}
