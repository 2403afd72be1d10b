package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// TestSQLCacheLookupRequiresSameSizeAndMTime verifies that a cached
// signature is only returned for an unchanged file.
func TestSQLCacheLookupRequiresSameSizeAndMTime(t *testing.T) {
	c := NewSQLCache(mustOpenDB(t))
	mtime := time.Unix(1700000000, 123)
	c.Store("/g/th06.exe", 100, mtime, []byte{1, 2, 3})

	if sig, ok := c.Lookup("/g/th06.exe", 100, mtime); !ok || !reflect.DeepEqual(sig, []byte{1, 2, 3}) {
		t.Errorf("Lookup = %v, %v; want hit", sig, ok)
	}
	if _, ok := c.Lookup("/g/th06.exe", 101, mtime); ok {
		t.Error("hit with different size")
	}
	if _, ok := c.Lookup("/g/th06.exe", 100, mtime.Add(time.Second)); ok {
		t.Error("hit with different mtime")
	}
	if _, ok := c.Lookup("/g/other.exe", 100, mtime); ok {
		t.Error("hit for unknown path")
	}

	// Storing again replaces the row.
	later := mtime.Add(time.Hour)
	c.Store("/g/th06.exe", 200, later, []byte{9})
	if sig, ok := c.Lookup("/g/th06.exe", 200, later); !ok || sig[0] != 9 {
		t.Errorf("Lookup after replace = %v, %v", sig, ok)
	}
	if _, ok := c.Lookup("/g/th06.exe", 100, mtime); ok {
		t.Error("stale row survived replace")
	}
}

// TestCacheAvoidsRehashing: the second scan of an unchanged tree reads
// signatures from the cache; touching the file forces a rehash.
func TestCacheAvoidsRehashing(t *testing.T) {
	root := t.TempDir()
	content := exeContent(4000, 6)
	exe := writeFile(t, filepath.Join(root, "th06", "th06.exe"), content)
	db := mustDatabase(t, descriptorFor("th06", "v1.02h", "", content))

	h := &countingHasher{}
	s := New(db, Config{Hasher: h, Cache: NewSQLCache(mustOpenDB(t)), Report: noErrors(t)})
	want := Results{"th06": {key(exe): "v1.02h"}}

	p1 := &Progress{}
	got, err := s.Run([]string{root}, nil, p1)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("first Run = %v, %v", got, err)
	}
	if h.calls.Load() != 1 || p1.CacheMisses.Load() != 1 {
		t.Fatalf("first scan: hashes=%d misses=%d, want 1 and 1", h.calls.Load(), p1.CacheMisses.Load())
	}

	p2 := &Progress{}
	got, err = s.Run([]string{root}, nil, p2)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("second Run = %v, %v", got, err)
	}
	if h.calls.Load() != 1 || p2.CacheHits.Load() != 1 {
		t.Errorf("second scan: hashes=%d hits=%d, want 1 and 1", h.calls.Load(), p2.CacheHits.Load())
	}

	touched := time.Now().Add(time.Minute)
	if err := os.Chtimes(exe, touched, touched); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run([]string{root}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if h.calls.Load() != 2 {
		t.Errorf("after touch: hashes=%d, want 2", h.calls.Load())
	}
}
