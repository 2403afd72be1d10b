// Package filelock guards files shared between thlocate processes: the
// results file written by scan and the database used by serve.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("locked by another process")

// Lock is an exclusive inter-process lock on path + ".lock".
type Lock struct {
	flock *flock.Flock
	path  string
}

// New returns the lock guarding path. Nothing is acquired yet.
func New(path string) *Lock {
	lockPath := path + ".lock"
	return &Lock{flock: flock.New(lockPath), path: lockPath}
}

// Path is the lock file path.
func (l *Lock) Path() string { return l.path }

// Lock blocks until the lock is held.
func (l *Lock) Lock() error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return nil
}

// TryLock acquires the lock without blocking, or returns ErrLocked.
func (l *Lock) TryLock() error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.path, ErrLocked)
	}
	return nil
}

func (l *Lock) ensureDir() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// AtomicWrite replaces path with data via a temp file in the same directory
// and a rename, so readers never see a partial file.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	committed = true
	return nil
}

// LockAndWrite holds the lock for path while writing it atomically.
func LockAndWrite(path string, data []byte) error {
	l := New(path)
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return AtomicWrite(path, data)
}
