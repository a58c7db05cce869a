package index

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kindredlabs/recall/internal/embedding"
)

// MemoryIndex is the reference brute-force backend: an append-only list
// of records scanned linearly on every search. It needs no external
// service, which makes it the default backend and the one the test
// suite leans on. With a path it snapshots itself to disk via temp file
// and atomic rename (last successful save wins after a crash).
type MemoryIndex struct {
	mu      sync.RWMutex
	records []Record
	path    string
	entropy *rand.Rand
}

// NewMemoryIndex creates a brute-force index. If path is non-empty and
// a previous snapshot exists it is loaded; a corrupt snapshot starts
// the index empty rather than failing.
func NewMemoryIndex(path string) (*MemoryIndex, error) {
	idx := &MemoryIndex{
		path:    path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	idx.load()
	return idx, nil
}

func (idx *MemoryIndex) Name() string { return "memory" }

func (idx *MemoryIndex) Insert(_ context.Context, rec Record) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), idx.entropy).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	idx.records = append(idx.records, rec)
	return rec.ID, nil
}

func (idx *MemoryIndex) Search(_ context.Context, ownerID string, query embedding.Vector, limit int, scopeID string, f *Filters) ([]Hit, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if limit <= 0 {
		limit = 10
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []Hit
	for _, rec := range idx.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if scopeID != "" && rec.ScopeID != scopeID {
			continue
		}
		if f != nil && f.MemoryType != "" && rec.MemoryType != f.MemoryType {
			continue
		}
		if len(rec.Vector) == 0 {
			// Stored without an embedding; not searchable.
			continue
		}
		hits = append(hits, Hit{Record: rec, Score: embedding.CosineSimilarity(query, rec.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete rebuilds the record list without the given record.
func (idx *MemoryIndex) Delete(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.records[:0]
	for _, rec := range idx.records {
		if rec.ID == id {
			continue
		}
		kept = append(kept, rec)
	}
	idx.records = kept
	return nil
}

// DeleteByOwner rebuilds the record list without the owner's records.
func (idx *MemoryIndex) DeleteByOwner(_ context.Context, ownerID, scopeID string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.records[:0]
	for _, rec := range idx.records {
		if rec.OwnerID == ownerID && (scopeID == "" || rec.ScopeID == scopeID) {
			continue
		}
		kept = append(kept, rec)
	}
	idx.records = kept
	return nil
}

// Len returns the number of stored records.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Save snapshots the index to its path atomically. No-op without a path.
func (idx *MemoryIndex) Save() error {
	if idx.path == "" {
		return nil
	}

	idx.mu.RLock()
	data, err := json.Marshal(idx.records)
	idx.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
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
	return os.Rename(tmp.Name(), idx.path)
}

func (idx *MemoryIndex) load() {
	if idx.path == "" {
		return
	}
	data, err := os.ReadFile(idx.path)
	if err != nil {
		return
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	idx.records = records
}

func (idx *MemoryIndex) Close() error {
	return idx.Save()
}
