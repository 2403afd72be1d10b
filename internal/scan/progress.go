package scan

import (
	"log/slog"
	"sync/atomic"
)

// Progress holds live counters updated by the scan workers.
// All fields are atomic so they can be written from worker goroutines and
// read from the HTTP handler or the CLI progress line without locks.
type Progress struct {
	DirsScanned atomic.Int64
	FilesSeen   atomic.Int64 // regular files with the executable extension
	Candidates  atomic.Int64 // files that passed the size filter
	Hashed      atomic.Int64
	BytesHashed atomic.Int64
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
	Matched     atomic.Int64 // matches written to the registry
	Skipped     atomic.Int64 // matches of already selected games
	Errors      atomic.Int64
	// Worker accounting
	InlineWalks   atomic.Int64 // subdirectories walked on the caller's goroutine
	ActiveWorkers atomic.Int64 // gauge, zero once Run returns
	PeakWorkers   atomic.Int64
}

// workerStarted bumps the active gauge and records the peak.
func (p *Progress) workerStarted() {
	n := p.ActiveWorkers.Add(1)
	for {
		peak := p.PeakWorkers.Load()
		if n <= peak || p.PeakWorkers.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (p *Progress) workerDone() {
	p.ActiveWorkers.Add(-1)
}

// LogValue lets a Progress be logged as a single slog group.
func (p *Progress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("dirs", p.DirsScanned.Load()),
		slog.Int64("files", p.FilesSeen.Load()),
		slog.Int64("candidates", p.Candidates.Load()),
		slog.Int64("hashed", p.Hashed.Load()),
		slog.Int64("cache_hits", p.CacheHits.Load()),
		slog.Int64("matched", p.Matched.Load()),
		slog.Int64("skipped", p.Skipped.Load()),
		slog.Int64("errors", p.Errors.Load()),
		slog.Int64("peak_workers", p.PeakWorkers.Load()),
	)
}

// ErrorReporter records a non-fatal scan error. stage is "walk" for
// directory enumeration failures and "hash" for unreadable candidates.
type ErrorReporter func(path, stage, errMsg string)

// logErrors is the default reporter: a debug line per error. Permission
// errors are routine when walking entire drives.
func logErrors(path, stage, errMsg string) {
	slog.Debug("scan error", "path", path, "stage", stage, "error", errMsg)
}
