package versions

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrEmpty is returned when a database would contain no usable descriptors.
var ErrEmpty = errors.New("version database has no entries")

// Descriptor identifies one known build of a game executable.
type Descriptor struct {
	Game      string
	Build     string
	Variety   string
	Size      int64
	Signature []byte
}

// Label is the human-readable version string shown next to a found path,
// e.g. "v1.02h original". Missing parts are left out.
func (d Descriptor) Label() string {
	switch {
	case d.Build != "" && d.Variety != "":
		return d.Build + " " + d.Variety
	case d.Build != "":
		return d.Build
	default:
		return d.Variety
	}
}

// Database maps executable sizes to the descriptors of that size.
// It is built once and is safe for concurrent reads.
type Database struct {
	bySize  map[int64][]Descriptor
	minSize int64
	maxSize int64
	count   int
}

// New builds a Database from descs. Descriptors without a game key, a
// positive size or a signature are dropped.
//
// Within a size bucket descriptors are ordered by game, build, variety and
// signature. When two descriptors share a size and a signature the first in
// that order is the one reported; the data is ambiguous in that case.
func New(descs []Descriptor) (*Database, error) {
	db := &Database{bySize: make(map[int64][]Descriptor)}
	for _, d := range descs {
		if d.Game == "" || d.Size <= 0 || len(d.Signature) == 0 {
			continue
		}
		db.bySize[d.Size] = append(db.bySize[d.Size], d)
		db.count++
	}
	if db.count == 0 {
		return nil, ErrEmpty
	}

	first := true
	for size, bucket := range db.bySize {
		sort.SliceStable(bucket, func(i, j int) bool { return less(bucket[i], bucket[j]) })
		if first || size < db.minSize {
			db.minSize = size
		}
		if first || size > db.maxSize {
			db.maxSize = size
		}
		first = false
	}
	return db, nil
}

func less(a, b Descriptor) bool {
	if a.Game != b.Game {
		return a.Game < b.Game
	}
	if a.Build != b.Build {
		return a.Build < b.Build
	}
	if a.Variety != b.Variety {
		return a.Variety < b.Variety
	}
	return bytes.Compare(a.Signature, b.Signature) < 0
}

// InRange reports whether size lies within [MinSize, MaxSize].
func (db *Database) InRange(size int64) bool {
	return size >= db.minSize && size <= db.maxSize
}

// Bucket returns the descriptors for an exact size, or nil.
// The returned slice must not be modified.
func (db *Database) Bucket(size int64) []Descriptor {
	return db.bySize[size]
}

// MinSize is the smallest known executable size.
func (db *Database) MinSize() int64 { return db.minSize }

// MaxSize is the largest known executable size.
func (db *Database) MaxSize() int64 { return db.maxSize }

// Len is the number of descriptors.
func (db *Database) Len() int { return db.count }

// Sizes is the number of distinct size buckets.
func (db *Database) Sizes() int { return len(db.bySize) }

// Games returns the sorted, distinct game keys in the database.
func (db *Database) Games() []string {
	seen := make(map[string]struct{})
	for _, bucket := range db.bySize {
		for _, d := range bucket {
			seen[d.Game] = struct{}{}
		}
	}
	games := make([]string, 0, len(seen))
	for g := range seen {
		games = append(games, g)
	}
	sort.Strings(games)
	return games
}

// String summarises the database for log output.
func (db *Database) String() string {
	return fmt.Sprintf("%d versions of %d games, sizes %d-%d",
		db.count, len(db.Games()), db.minSize, db.maxSize)
}
