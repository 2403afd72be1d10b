package scan

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	internaldb "github.com/eargollo/thlocate/internal/db"
	"github.com/eargollo/thlocate/internal/versions"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "test.db")
	db, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.RunMigrations(db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// noErrors is an ErrorReporter that fails the test if invoked.
func noErrors(tb testing.TB) ErrorReporter {
	return func(path, stage, errMsg string) {
		tb.Errorf("unexpected scan error: path=%q stage=%q err=%q", path, stage, errMsg)
	}
}

// exeContent returns deterministic file content of exactly size bytes.
func exeContent(size int, seed byte) []byte {
	return bytes.Repeat([]byte{seed}, size)
}

// writeFile creates path (and its parents) with content.
func writeFile(tb testing.TB, path string, content []byte) string {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %q: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		tb.Fatalf("write %q: %v", path, err)
	}
	return path
}

// descriptorFor describes content as a known build of game.
func descriptorFor(game, build, variety string, content []byte) versions.Descriptor {
	sum := sha256.Sum256(content)
	return versions.Descriptor{
		Game:      game,
		Build:     build,
		Variety:   variety,
		Size:      int64(len(content)),
		Signature: sum[:],
	}
}

func mustDatabase(tb testing.TB, descs ...versions.Descriptor) *versions.Database {
	tb.Helper()
	db, err := versions.New(descs)
	if err != nil {
		tb.Fatalf("versions.New: %v", err)
	}
	return db
}

// countingHasher records every path it hashes.
type countingHasher struct {
	calls atomic.Int64
	mu    sync.Mutex
	paths []string
}

func (h *countingHasher) Sum(path string) ([]byte, error) {
	h.calls.Add(1)
	h.mu.Lock()
	h.paths = append(h.paths, path)
	h.mu.Unlock()
	return SHA256{}.Sum(path)
}

// blockingHasher hashes only after release is closed.
type blockingHasher struct {
	release chan struct{}
}

func (h *blockingHasher) Sum(path string) ([]byte, error) {
	<-h.release
	return SHA256{}.Sum(path)
}

// key is the registry key the scanner produces for an OS path.
func key(path string) string {
	return normalize(path)
}

// failingHasher fails for the path fail and hashes everything else.
type failingHasher struct {
	fail string
}

func (h failingHasher) Sum(path string) ([]byte, error) {
	if path == h.fail {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrPermission)
	}
	return SHA256{}.Sum(path)
}
