package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of vectors held in memory.
const DefaultCacheSize = 10000

// Cache wraps an Embedder with an LRU cache keyed by the content hash of
// the exact input string. The cache is persisted to a JSON file between
// runs: loading is best-effort (a missing or corrupt file starts empty),
// and saving replaces the file atomically.
type Cache struct {
	inner Embedder

	mu    sync.Mutex
	cache *lru.Cache[string, Vector]
	path  string
	dirty bool
}

// NewCache creates a caching embedder persisted at path. An empty path
// disables persistence.
func NewCache(inner Embedder, size int, path string) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, Vector](size)
	if err != nil {
		return nil, err
	}
	cache := &Cache{inner: inner, cache: c, path: path}
	cache.load()
	return cache, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Embed(ctx context.Context, text string) (Vector, error) {
	key := cacheKey(text)

	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return cloneVector(v), nil
	}
	c.mu.Unlock()

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(key, cloneVector(v))
	c.dirty = true
	c.mu.Unlock()
	return v, nil
}

// EmbedBatch resolves cache hits first and embeds only the misses in one
// inner batch call, preserving input order in the result.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	results := make([]Vector, len(texts))
	var missTexts []string
	var missIdx []int

	c.mu.Lock()
	for i, t := range texts {
		if v, ok := c.cache.Get(cacheKey(t)); ok {
			results[i] = cloneVector(v)
		} else {
			missTexts = append(missTexts, t)
			missIdx = append(missIdx, i)
		}
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(missTexts))
	}

	c.mu.Lock()
	for i, v := range vectors {
		results[missIdx[i]] = v
		c.cache.Add(cacheKey(missTexts[i]), cloneVector(v))
	}
	c.dirty = true
	c.mu.Unlock()
	return results, nil
}

func (c *Cache) Dims() int { return c.inner.Dims() }

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// load reads the persisted cache file. Absence or corruption is not an
// error; the cache simply starts empty.
func (c *Cache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var entries map[string]Vector
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		c.cache.Add(k, v)
	}
}

// Save writes the cache to disk via a temp file and atomic rename. A
// crash mid-write leaves the previous file intact.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	entries := make(map[string]Vector, c.cache.Len())
	for _, k := range c.cache.Keys() {
		if v, ok := c.cache.Peek(k); ok {
			entries[k] = v
		}
	}
	c.dirty = false
	c.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".embed_cache-*")
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
	return os.Rename(tmp.Name(), c.path)
}

// Close flushes the cache to disk.
func (c *Cache) Close() error {
	return c.Save()
}

func cloneVector(v Vector) Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
