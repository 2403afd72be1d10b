package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eargollo/thlocate/internal/versions"
)

// ErrAlreadyRunning is returned when a scan is started while one is in progress.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// maxStoredErrors caps scan_errors rows per scan. Whole-drive scans hit
// thousands of permission errors; the rest are only counted.
const maxStoredErrors = 500

// ActiveScan holds live information about the running scan.
type ActiveScan struct {
	ID          int64
	StartedAt   time.Time
	TriggeredBy string
	Progress    *Progress
	// Done is closed once the scan has been finalised in the database.
	Done <-chan struct{}
}

// Manager enforces a single-active-scan invariant and records every scan in
// scan_history. It is safe for concurrent use. Scans cannot be cancelled.
type Manager struct {
	mu       sync.Mutex
	db       *sql.DB
	versions *versions.Database
	roots    []string
	selected Selected
	cfg      Config

	active *ActiveScan
}

// NewManager creates a Manager. Empty roots scan every local fixed drive.
func NewManager(db *sql.DB, vdb *versions.Database, roots []string, selected Selected, cfg Config) *Manager {
	return &Manager{
		db:       db,
		versions: vdb,
		roots:    roots,
		selected: selected,
		cfg:      cfg,
	}
}

// Start launches an asynchronous scan. Returns an ActiveScan snapshot or
// ErrAlreadyRunning if a scan is already in progress.
func (m *Manager) Start(triggeredBy string) (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}
	if m.versions == nil {
		return nil, ErrNoDatabase
	}

	// Create the scan_history record now so the ID is available immediately
	// in the HTTP response.
	startedAt := time.Now()
	scanID, err := insertScanRecord(m.db, startedAt, triggeredBy, m.roots)
	if err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	progress := &Progress{}
	done := make(chan struct{})
	active := &ActiveScan{
		ID:          scanID,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
		Progress:    progress,
		Done:        done,
	}
	m.active = active

	cfg := m.cfg
	cfg.Report = m.errorReporter(scanID)
	scanner := New(m.versions, cfg)
	roots := append([]string(nil), m.roots...)

	go func() {
		defer close(done)
		m.execute(scanner, scanID, roots, startedAt, progress)

		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
	}()

	snap := *active
	return &snap, nil
}

func (m *Manager) execute(s *Scanner, scanID int64, roots []string, startedAt time.Time, progress *Progress) {
	slog.Info("managed scan started", "id", scanID)

	stop := make(chan struct{})
	go progressReporter(m.db, scanID, progress, stop)

	results, runErr := s.Run(roots, m.selected, progress)
	close(stop)

	status := "completed"
	if runErr == nil {
		runErr = insertFoundGames(m.db, scanID, results)
	}
	if runErr != nil {
		status = "failed"
		slog.Error("managed scan failed", "id", scanID, "error", runErr)
	}

	finishedAt := time.Now()
	if err := finaliseScanRecord(m.db, scanID, status, finishedAt, finishedAt.Sub(startedAt), progress); err != nil {
		slog.Error("finalise scan record", "id", scanID, "error", err)
	}
	slog.Info("managed scan finished", "id", scanID, "status", status, "games", len(results))
}

// errorReporter persists the first maxStoredErrors errors of a scan.
func (m *Manager) errorReporter(scanID int64) ErrorReporter {
	var stored atomic.Int64
	return func(path, stage, errMsg string) {
		logErrors(path, stage, errMsg)
		if stored.Add(1) > maxStoredErrors {
			return
		}
		if err := insertScanError(m.db, scanID, path, stage, errMsg); err != nil {
			slog.Warn("persist scan error", "id", scanID, "error", err)
		}
	}
}

// ActiveScan returns a snapshot of the running scan, or nil when idle.
func (m *Manager) ActiveScan() *ActiveScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

// progressReporter writes the current counters to scan_history every second
// until stop is closed.
func progressReporter(db *sql.DB, scanID int64, p *Progress, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := flushProgress(context.Background(), db, scanID, p); err != nil {
				slog.Warn("progress reporter: update failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}
