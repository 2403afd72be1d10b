package scan

import "sync"

// Results maps a game key to the executables found for it: path → label.
type Results map[string]map[string]string

// Paths returns the number of paths across all games.
func (r Results) Paths() int {
	n := 0
	for _, paths := range r {
		n += len(paths)
	}
	return n
}

// registry accumulates matches from concurrent workers. It has its own lock
// so registry writes never contend with worker accounting.
type registry struct {
	mu    sync.Mutex
	found Results
}

func newRegistry() *registry {
	return &registry{found: make(Results)}
}

// insert records path under game. Re-inserting the same path overwrites
// its label.
func (r *registry) insert(game, path, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths, ok := r.found[game]
	if !ok {
		paths = make(map[string]string)
		r.found[game] = paths
	}
	paths[path] = label
}

// snapshot returns a deep copy of the accumulated results.
func (r *registry) snapshot() Results {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Results, len(r.found))
	for game, paths := range r.found {
		cp := make(map[string]string, len(paths))
		for p, l := range paths {
			cp[p] = l
		}
		out[game] = cp
	}
	return out
}
