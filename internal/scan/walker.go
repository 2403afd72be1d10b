package scan

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// run is the state of a single scan. It is created by Scanner.Run, shared by
// every worker of that scan, and dropped when Run returns.
//
// Worker protocol (InlineFallback back-pressure):
//   - dispatch tries to take a worker slot. On success the wait-group and the
//     active gauge are incremented BEFORE the goroutine starts.
//   - When no slot is free the subtree is walked inline on the calling
//     worker, so the number of goroutines never exceeds the slot count.
//   - A worker releases its slot, decrements the gauge and calls wg.Done only
//     after its walk, including all inline subtrees, has returned. wg.Wait
//     therefore cannot observe zero while any directory is still pending.
type run struct {
	*matcher

	slots    *semaphore.Weighted
	wg       sync.WaitGroup
	excludes map[string]struct{}
	ext      string
}

// dispatch walks dir on a new worker if a slot is free, inline otherwise.
func (r *run) dispatch(dir string) {
	if !r.slots.TryAcquire(1) {
		r.progress.InlineWalks.Add(1)
		r.walk(dir)
		return
	}
	r.spawn(dir)
}

// spawn starts a worker for dir. The caller must already hold a slot.
func (r *run) spawn(dir string) {
	r.wg.Add(1)
	r.progress.workerStarted()
	go func() {
		defer r.wg.Done()
		defer r.slots.Release(1)
		defer r.progress.workerDone()
		r.walk(dir)
	}()
}

// walk enumerates dir once. Subdirectories go to dispatch; executables whose
// size is within the database range go to the matcher. os.ReadDir closes the
// directory before any child is visited, so open handles are bounded by the
// number of workers rather than by tree depth.
func (r *run) walk(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.progress.Errors.Add(1)
		r.report(normalize(dir), "walk", err.Error())
		return
	}
	r.progress.DirsScanned.Add(1)

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		path := filepath.Join(dir, name)
		key := normalize(path)
		if _, excluded := r.excludes[key]; excluded {
			continue
		}

		if entry.IsDir() {
			r.dispatch(path)
			continue
		}

		// Symlinks and junctions are not followed; they can form cycles.
		if !entry.Type().IsRegular() || !r.isExecutable(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			r.progress.Errors.Add(1)
			r.report(key, "walk", err.Error())
			continue
		}
		r.progress.FilesSeen.Add(1)

		if !r.db.InRange(info.Size()) {
			continue
		}
		r.check(Candidate{Path: key, Size: info.Size(), ModTime: info.ModTime()})
	}
}

func (r *run) isExecutable(name string) bool {
	return strings.EqualFold(filepath.Ext(name), r.ext)
}

// normalize cleans path and converts it to forward slashes, the form used
// for registry keys and exclude matching.
func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
