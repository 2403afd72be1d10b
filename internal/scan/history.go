package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrScanNotFound is returned by GetScan for an unknown id.
var ErrScanNotFound = errors.New("scan not found")

// ScanRecord is one scan_history row.
type ScanRecord struct {
	ID              int64      `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	Status          string     `json:"status"`
	TriggeredBy     string     `json:"triggered_by"`
	Roots           []string   `json:"roots"`
	DirsScanned     int64      `json:"dirs_scanned"`
	FilesSeen       int64      `json:"files_seen"`
	Candidates      int64      `json:"candidates"`
	FilesHashed     int64      `json:"files_hashed"`
	BytesHashed     int64      `json:"bytes_hashed"`
	CacheHits       int64      `json:"cache_hits"`
	CacheMisses     int64      `json:"cache_misses"`
	Matched         int64      `json:"matched"`
	Skipped         int64      `json:"skipped"`
	Errors          int64      `json:"errors"`
	DurationSeconds *int64     `json:"duration_seconds"`
}

// ScanError is one scan_errors row.
type ScanError struct {
	Path       string    `json:"path"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

const scanColumns = `id, started_at, finished_at, status, triggered_by, roots,
	dirs_scanned, files_seen, candidates, files_hashed, bytes_hashed,
	cache_hits, cache_misses, matched, skipped, errors, duration_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ScanRecord, error) {
	var (
		rec        ScanRecord
		startedAt  int64
		finishedAt sql.NullInt64
		duration   sql.NullInt64
		roots      string
	)
	err := row.Scan(&rec.ID, &startedAt, &finishedAt, &rec.Status, &rec.TriggeredBy, &roots,
		&rec.DirsScanned, &rec.FilesSeen, &rec.Candidates, &rec.FilesHashed, &rec.BytesHashed,
		&rec.CacheHits, &rec.CacheMisses, &rec.Matched, &rec.Skipped, &rec.Errors, &duration)
	if err != nil {
		return rec, err
	}
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		rec.FinishedAt = &t
	}
	if duration.Valid {
		rec.DurationSeconds = &duration.Int64
	}
	rec.Roots = splitRoots(roots)
	return rec, nil
}

func joinRoots(roots []string) string { return strings.Join(roots, "\n") }

func splitRoots(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// ListScans returns scan history newest first, and the total row count.
func ListScans(ctx context.Context, db *sql.DB, limit, offset int) ([]ScanRecord, int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scan_history ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	recs := []ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list scans: scan row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}
	return recs, total, nil
}

// GetScan returns one scan record or ErrScanNotFound.
func GetScan(ctx context.Context, db *sql.DB, id int64) (*ScanRecord, error) {
	rec, err := scanRecord(db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scan_history WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %d: %w", id, err)
	}
	return &rec, nil
}

// LastCompletedScan returns the most recent completed scan, or nil.
func LastCompletedScan(ctx context.Context, db *sql.DB) (*ScanRecord, error) {
	rec, err := scanRecord(db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scan_history
		WHERE status = 'completed' ORDER BY finished_at DESC, id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed scan: %w", err)
	}
	return &rec, nil
}

// ScanErrors returns the errors recorded for a scan, oldest first.
func ScanErrors(ctx context.Context, db *sql.DB, id int64, limit int) ([]ScanError, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, stage, error, occurred_at FROM scan_errors
		WHERE scan_id = ? ORDER BY id LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("scan errors: %w", err)
	}
	defer rows.Close()

	out := []ScanError{}
	for rows.Next() {
		var e ScanError
		var at int64
		if err := rows.Scan(&e.Path, &e.Stage, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("scan errors: scan row: %w", err)
		}
		e.OccurredAt = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ScanResults returns the games found by a scan.
func ScanResults(ctx context.Context, db *sql.DB, id int64) (Results, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT game, path, label FROM found_games WHERE scan_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	defer rows.Close()

	res := make(Results)
	for rows.Next() {
		var game, path, label string
		if err := rows.Scan(&game, &path, &label); err != nil {
			return nil, fmt.Errorf("scan results: scan row: %w", err)
		}
		if res[game] == nil {
			res[game] = make(map[string]string)
		}
		res[game][path] = label
	}
	return res, rows.Err()
}

// ── writers used by Manager ───────────────────────────────────────────────────

func insertScanRecord(db *sql.DB, startedAt time.Time, triggeredBy string, roots []string) (int64, error) {
	now := startedAt.Unix()
	res, err := db.Exec(`
		INSERT INTO scan_history (started_at, status, triggered_by, roots, created_at)
		VALUES (?, 'running', ?, ?, ?)`,
		now, triggeredBy, joinRoots(roots), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func flushProgress(ctx context.Context, db *sql.DB, scanID int64, p *Progress) error {
	_, err := db.ExecContext(ctx, `
		UPDATE scan_history
		SET dirs_scanned = ?, files_seen = ?, candidates = ?,
		    files_hashed = ?, bytes_hashed = ?,
		    cache_hits = ?, cache_misses = ?,
		    matched = ?, skipped = ?, errors = ?
		WHERE id = ?`,
		p.DirsScanned.Load(), p.FilesSeen.Load(), p.Candidates.Load(),
		p.Hashed.Load(), p.BytesHashed.Load(),
		p.CacheHits.Load(), p.CacheMisses.Load(),
		p.Matched.Load(), p.Skipped.Load(), p.Errors.Load(),
		scanID)
	return err
}

func finaliseScanRecord(db *sql.DB, scanID int64, status string, finishedAt time.Time, duration time.Duration, p *Progress) error {
	if err := flushProgress(context.Background(), db, scanID, p); err != nil {
		return err
	}
	_, err := db.Exec(`
		UPDATE scan_history SET status = ?, finished_at = ?, duration_seconds = ?
		WHERE id = ?`,
		status, finishedAt.Unix(), int64(duration.Seconds()), scanID)
	return err
}

func insertFoundGames(db *sql.DB, scanID int64, results Results) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO found_games (scan_id, game, path, label) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for game, paths := range results {
		for path, label := range paths {
			if _, err := stmt.Exec(scanID, game, path, label); err != nil {
				return fmt.Errorf("insert %s %q: %w", game, path, err)
			}
		}
	}
	return tx.Commit()
}

func insertScanError(db *sql.DB, scanID int64, path, stage, errMsg string) error {
	_, err := db.Exec(`
		INSERT INTO scan_errors (scan_id, path, stage, error, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		scanID, path, stage, errMsg, time.Now().Unix())
	return err
}

// MarkStaleScansFailed marks any scan_history rows still in 'running' state
// as 'failed'. Called once at startup in case a previous process exited
// mid-scan.
func MarkStaleScansFailed(db *sql.DB) (int64, error) {
	res, err := db.Exec(`
		UPDATE scan_history SET status = 'failed', finished_at = ?
		WHERE status = 'running'`,
		time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("mark stale scans failed: %w", err)
	}
	return res.RowsAffected()
}
