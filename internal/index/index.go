// Package index provides the vector index abstraction and its backends.
//
// Every backend honors the same contract: search results are scoped to a
// single owner (and optionally a scope) and never contain another
// owner's records; scores are cosine similarity, higher is better, and
// results come back in descending score order. A backend that cannot
// delete in place may rebuild itself without the deleted records, as
// long as deleted records are unsearchable afterwards.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/model"
)

// Record is one stored vector with the metadata retrieval needs.
type Record struct {
	ID              string                `json:"id"`
	OwnerID         string                `json:"owner_id"`
	ScopeID         string                `json:"scope_id"`
	Text            string                `json:"text"`
	Vector          embedding.Vector      `json:"vector"`
	MemoryType      model.MemoryType      `json:"memory_type"`
	RetentionPolicy model.RetentionPolicy `json:"retention_policy"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Hit is one search result.
type Hit struct {
	Record
	Score float64 `json:"score"`
}

// Filters narrows a search beyond owner/scope.
type Filters struct {
	MemoryType model.MemoryType
}

// Index is a pluggable nearest-neighbor store.
type Index interface {
	// Insert stores a record and returns its id. A record with an
	// empty id is assigned one.
	Insert(ctx context.Context, rec Record) (string, error)

	// Search returns up to limit hits for ownerID, scoped to scopeID
	// when non-empty, sorted by descending score.
	Search(ctx context.Context, ownerID string, query embedding.Vector, limit int, scopeID string, f *Filters) ([]Hit, error)

	// Delete removes a single record. Deleting an unknown id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// DeleteByOwner removes all records for ownerID, narrowed to
	// scopeID when non-empty.
	DeleteByOwner(ctx context.Context, ownerID, scopeID string) error

	// Name identifies the backend.
	Name() string

	Close() error
}

// ErrMissingOwner is returned when a search or delete has no owner to
// scope by. Owner isolation is a correctness invariant, so an unscoped
// call is rejected rather than served.
var ErrMissingOwner = errors.New("index: owner id is required")

// Config selects and configures a backend.
type Config struct {
	Backend string // "memory", "sqlite", "pgvector"
	Path    string // file path for memory/sqlite backends
	DSN     string // postgres DSN for the pgvector backend
	Dims    int
}

// Status reports which backend a caller actually got.
type Status struct {
	Backend  string
	Degraded bool  // true when the configured backend failed to open
	Err      error // the open failure, when degraded
}

// Open creates the configured backend.
func Open(cfg Config) (Index, error) {
	if cfg.Dims <= 0 {
		cfg.Dims = embedding.DefaultDims
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryIndex(cfg.Path)
	case "sqlite":
		return NewSQLiteIndex(cfg.Path)
	case "pgvector":
		return NewPGVectorIndex(cfg.DSN, cfg.Dims)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// OpenWithFallback opens the configured backend and, when it cannot be
// initialized, falls back to the in-memory brute-force backend for the
// rest of the process lifetime. The failure is reported in the returned
// Status, never swallowed.
func OpenWithFallback(cfg Config) (Index, Status) {
	idx, err := Open(cfg)
	if err == nil {
		return idx, Status{Backend: idx.Name()}
	}
	fallback, ferr := NewMemoryIndex("")
	if ferr != nil {
		// NewMemoryIndex with no path cannot fail; guard anyway.
		panic(ferr)
	}
	return fallback, Status{Backend: fallback.Name(), Degraded: true, Err: err}
}
