// Package cache implements the two-tier metadata cache (C3): a persistent
// 24-hour on-disk snapshot of the full formula/cask index, plus a bounded
// in-memory LRU for single-item lookups within one process.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/formula"
	"github.com/bru-dev/bru/internal/log"
)

// Minimum capacities from the Open Question decision recorded in
// SPEC_FULL.md §13: spec §3.1 only requires "≥1000 formulae, ≥500 casks".
const (
	formulaLRUCapacity = 1000
	caskLRUCapacity    = 500
)

// Cache is the metadata cache for one bru process: a persistent on-disk
// index snapshot plus in-memory LRUs for single-item fetches.
type Cache struct {
	dir    string
	logger log.Logger

	formulae *lru.Cache[string, *formula.Formula]
	casks    *lru.Cache[string, *formula.Cask]
}

// New builds a Cache rooted at cfg.CacheDir.
func New(cfg *config.Config, logger log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.NewNoop()
	}

	formulaLRU, err := lru.New[string, *formula.Formula](formulaLRUCapacity)
	if err != nil {
		return nil, err
	}
	caskLRU, err := lru.New[string, *formula.Cask](caskLRUCapacity)
	if err != nil {
		return nil, err
	}

	return &Cache{dir: cfg.CacheDir, logger: logger, formulae: formulaLRU, casks: caskLRU}, nil
}

// FormulaeIndexPath returns the path to the persistent formula index
// snapshot, for freshness checks by callers like the API client.
func (c *Cache) FormulaeIndexPath() string { return filepath.Join(c.dir, "formulae.json") }

// CasksIndexPath returns the path to the persistent cask index snapshot.
func (c *Cache) CasksIndexPath() string { return filepath.Join(c.dir, "casks.json") }

func (c *Cache) formulaeIndexPath() string { return c.FormulaeIndexPath() }
func (c *Cache) casksIndexPath() string    { return c.CasksIndexPath() }

// FreshIndex reports whether the persistent snapshot at path is younger
// than ttl, per spec §3.1's "now - mtime < 24h" freshness rule.
func FreshIndex(path string, ttl time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < ttl
}

// ReadFormulaeIndex loads the raw persistent formulae snapshot, or
// (nil, false) if it is missing or unparseable.
func (c *Cache) ReadFormulaeIndex() ([]formula.Formula, bool) {
	return readIndex[formula.Formula](c.formulaeIndexPath())
}

// ReadCasksIndex loads the raw persistent casks snapshot, or (nil, false)
// if it is missing or unparseable.
func (c *Cache) ReadCasksIndex() ([]formula.Cask, bool) {
	return readIndex[formula.Cask](c.casksIndexPath())
}

func readIndex[T any](path string) ([]T, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	return items, true
}

// WriteFormulaeIndex writes the raw API response body for the formula
// index to the persistent cache. Per spec §4.3, write failures are
// logged, not returned: a stale/missing write never fails the caller's
// fetch_all_formulae().
func (c *Cache) WriteFormulaeIndex(body []byte) {
	c.writeIndex(c.formulaeIndexPath(), body)
}

// WriteCasksIndex writes the raw API response body for the cask index.
func (c *Cache) WriteCasksIndex(body []byte) {
	c.writeIndex(c.casksIndexPath(), body)
}

func (c *Cache) writeIndex(path string, body []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.logger.Warn("failed to create cache directory", "path", filepath.Dir(path), "error", err)
		return
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		c.logger.Warn("failed to write metadata cache", "path", path, "error", err)
	}
}

// GetFormula returns a cached formula by name, or (nil, false) on miss.
func (c *Cache) GetFormula(name string) (*formula.Formula, bool) {
	return c.formulae.Get(name)
}

// PutFormula inserts f into the in-memory formula cache.
func (c *Cache) PutFormula(f *formula.Formula) {
	c.formulae.Add(f.Name, f)
}

// GetCask returns a cached cask by token, or (nil, false) on miss.
func (c *Cache) GetCask(token string) (*formula.Cask, bool) {
	return c.casks.Get(token)
}

// PutCask inserts ck into the in-memory cask cache.
func (c *Cache) PutCask(ck *formula.Cask) {
	c.casks.Add(ck.Token, ck)
}

// Clear removes every *.json file in the persistent cache directory, per
// spec §4.3; invoked at the start of `bru update`. It does not touch the
// in-memory LRUs, which only live for this process anyway.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
