package scan

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
)

// Hasher computes the content signature of a file.
type Hasher interface {
	Sum(path string) ([]byte, error)
}

// SHA256 is the signature used by versions.js: SHA-256 over the whole file.
type SHA256 struct{}

var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 256*1024)
		return &b
	},
}

// Sum returns the SHA-256 digest of the file at path.
func (SHA256) Sum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := copyBufPool.Get().(*[]byte)
	defer copyBufPool.Put(buf)

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, *buf); err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return h.Sum(nil), nil
}
