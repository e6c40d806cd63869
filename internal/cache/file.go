package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JNZader/shapescan/internal/matcher"
)

// FileCache implements a file-based persistent cache. Each key is one JSON
// file in dir.
type FileCache struct {
	dir string
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

type fileEntry struct {
	Reports   []matcher.RuleMatchReport `json:"reports"`
	ExpiresAt time.Time                 `json:"expires_at,omitempty"`
}

// NewFileCache creates a new file-based cache. A zero ttl never expires
// entries.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, ttl: ttl}, nil
}

func (c *FileCache) Get(key string) ([]matcher.RuleMatchReport, bool, error) {
	path := c.keyPath(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A torn write is treated as a miss and overwritten later.
		_ = os.Remove(path)
		c.misses.Add(1)
		return nil, false, nil
	}

	if expired(entry.ExpiresAt) {
		_ = os.Remove(path)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return entry.Reports, true, nil
}

func (c *FileCache) Set(key string, reports []matcher.RuleMatchReport) error {
	entry := fileEntry{Reports: strip(reports)}
	if c.ttl > 0 {
		entry.ExpiresAt = time.Now().Add(c.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write then rename so concurrent readers never see partial files.
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(key))
}

func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *FileCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isEntryFile(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *FileCache) Stats() Stats {
	entries, _ := os.ReadDir(c.dir)
	n := 0
	for _, e := range entries {
		if !e.IsDir() && isEntryFile(e.Name()) {
			n++
		}
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: n,
	}
}

func (c *FileCache) Close() error { return nil }

// Cleanup removes expired and unreadable entries.
func (c *FileCache) Cleanup() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isEntryFile(entry.Name()) {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var fe fileEntry
		if err := json.Unmarshal(data, &fe); err != nil || expired(fe.ExpiresAt) {
			_ = os.Remove(path)
		}
	}
	return nil
}

func (c *FileCache) keyPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func isEntryFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}

func expired(at time.Time) bool {
	return !at.IsZero() && time.Now().After(at)
}
