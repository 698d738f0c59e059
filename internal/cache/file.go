package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pricecollector/pkg/price"
)

// FileCache keeps the latest snapshot as a JSON document on disk.
type FileCache struct {
	path string
	mu   sync.Mutex
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Path() string {
	return c.path
}

// Write replaces the cache document. Readers see either the old or the new file.
func (c *FileCache) Write(s price.Snapshot) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// Read returns the raw cache document. A missing file matches os.ErrNotExist.
func (c *FileCache) Read() ([]byte, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return b, nil
}
