// Package hashcache persists the size, modification time and identity of
// scanned descriptor files so unchanged files need not be re-read.
package hashcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phobologic/vamdeps/internal/model"
)

// version is bumped whenever the on-disk layout changes; older files are
// discarded on load.
const version = 1

// Entry is what is remembered about one file.
type Entry struct {
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Identity string    `json:"identity,omitempty"`
}

type fileFormat struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Cache maps absolute file paths, compared case-insensitively, to entries.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// Load reads the cache at path. A missing file or one written by another
// layout version yields an empty cache.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("decoding cache %s: %w", path, err)
	}
	if ff.Version != version {
		return c, nil
	}
	for k, e := range ff.Entries {
		c.entries[strings.ToLower(k)] = e
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the entry for path.
func (c *Cache) Lookup(path string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[strings.ToLower(path)]
	return e, ok
}

// Put records e for path.
func (c *Cache) Put(path string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(path)] = e
}

// Save writes the cache to its path via a temp file and rename.
func (c *Cache) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(fileFormat{Version: version, Entries: c.entries}, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache: %w", err)
	}
	return nil
}

// Tracked reports whether f's metadata is cached: descriptors and documents.
func Tracked(f model.AssetNode) bool {
	switch f.ExtLower() {
	case ".vam", ".vmi", ".json", ".vap":
		return true
	}
	return false
}

// Apply compares every tracked file (children included) against the cache.
// Files with no entry or a different size or modification time are marked
// dirty; the others get their identity from the cache. It returns the number
// of dirty files.
func (c *Cache) Apply(files []*model.FreeFile) int {
	dirty := 0
	for _, top := range files {
		for _, n := range model.SelfAndChildren(top) {
			f := n.(*model.FreeFile)
			if !Tracked(f) {
				continue
			}
			e, ok := c.Lookup(key(f))
			if !ok || e.Size != f.Size() || !e.Modified.Equal(f.Modified()) {
				f.SetDirty(true)
				dirty++
				continue
			}
			if e.Identity == "" {
				continue
			}
			switch f.ExtLower() {
			case ".vmi":
				f.SetMorphName(e.Identity)
			case ".vam":
				f.SetInternalID(e.Identity)
			}
		}
	}
	return dirty
}

// Update records the current metadata and identity of every tracked file.
func (c *Cache) Update(files []*model.FreeFile) {
	for _, top := range files {
		for _, n := range model.SelfAndChildren(top) {
			f := n.(*model.FreeFile)
			if !Tracked(f) {
				continue
			}
			identity := f.InternalID()
			if f.ExtLower() == ".vmi" {
				identity = f.MorphName()
			}
			c.Put(key(f), Entry{Size: f.Size(), Modified: f.Modified(), Identity: identity})
		}
	}
}

func key(f *model.FreeFile) string {
	if src := f.SourcePathIfSoftLink(); src != "" {
		return src
	}
	return f.FullPath()
}
