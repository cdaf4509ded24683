package archive

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Cache keeps downloaded archive files on disk, lz4-compressed and named
// by the BLAKE3 hash of their URL. Archived sessions never change, so
// entries do not expire.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("archive cache: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) path(rawURL string) string {
	sum := blake3.Sum256([]byte(rawURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".lz4")
}

// Get returns the cached body for a URL. A corrupt entry is removed and
// reported as a miss.
func (c *Cache) Get(rawURL string) ([]byte, bool) {
	p := c.path(rawURL)
	f, err := os.Open(p)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		os.Remove(p)
		return nil, false
	}
	return data, true
}

// Put stores the body for a URL. The entry appears atomically.
func (c *Cache) Put(rawURL string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, "entry-*")
	if err != nil {
		return fmt.Errorf("archive cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := lz4.NewWriter(tmp)
	_, werr := zw.Write(data)
	err = errors.Join(werr, zw.Close(), tmp.Close())
	if err != nil {
		return fmt.Errorf("archive cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(rawURL)); err != nil {
		return fmt.Errorf("archive cache: %w", err)
	}
	return nil
}
