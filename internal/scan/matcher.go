package scan

import (
	"bytes"
	"time"

	"github.com/eargollo/thlocate/internal/versions"
)

// Candidate is an executable found by the walker, before identification.
type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Selected is the set of games already configured by the user. Matches for
// these games are never reported again.
type Selected map[string]struct{}

// NewSelected builds a Selected set from game keys.
func NewSelected(games ...string) Selected {
	s := make(Selected, len(games))
	for _, g := range games {
		s[g] = struct{}{}
	}
	return s
}

// Has reports whether game is in the set. A nil set contains nothing.
func (s Selected) Has(game string) bool {
	_, ok := s[game]
	return ok
}

// matcher runs the two identification stages: a size filter that rejects
// almost everything for free, then a content signature compared against
// the size bucket.
type matcher struct {
	db       *versions.Database
	hasher   Hasher
	cache    HashCache
	selected Selected
	reg      *registry
	progress *Progress
	report   ErrorReporter
}

// accept is the size filter.
func (m *matcher) accept(size int64) bool {
	if !m.db.InRange(size) {
		return false
	}
	return len(m.db.Bucket(size)) > 0
}

// signature returns the candidate's signature, from the cache when the
// file is unchanged since it was last hashed.
func (m *matcher) signature(c Candidate) ([]byte, bool) {
	if m.cache != nil {
		if sig, ok := m.cache.Lookup(c.Path, c.Size, c.ModTime); ok {
			m.progress.CacheHits.Add(1)
			return sig, true
		}
		m.progress.CacheMisses.Add(1)
	}

	sig, err := m.hasher.Sum(c.Path)
	if err != nil {
		m.progress.Errors.Add(1)
		m.report(c.Path, "hash", err.Error())
		return nil, false
	}
	m.progress.Hashed.Add(1)
	m.progress.BytesHashed.Add(c.Size)

	if m.cache != nil {
		m.cache.Store(c.Path, c.Size, c.ModTime, sig)
	}
	return sig, true
}

// identify returns the first descriptor in the size bucket whose signature
// equals the candidate's.
func (m *matcher) identify(c Candidate) (versions.Descriptor, bool) {
	bucket := m.db.Bucket(c.Size)
	if len(bucket) == 0 {
		return versions.Descriptor{}, false
	}
	sig, ok := m.signature(c)
	if !ok {
		return versions.Descriptor{}, false
	}
	for _, d := range bucket {
		if bytes.Equal(d.Signature, sig) {
			return d, true
		}
	}
	return versions.Descriptor{}, false
}

// check runs a candidate through both stages and records a match.
func (m *matcher) check(c Candidate) {
	if !m.accept(c.Size) {
		return
	}
	m.progress.Candidates.Add(1)

	d, ok := m.identify(c)
	if !ok {
		return
	}
	if m.selected.Has(d.Game) {
		m.progress.Skipped.Add(1)
		return
	}
	m.reg.insert(d.Game, c.Path, d.Label())
	m.progress.Matched.Add(1)
}
