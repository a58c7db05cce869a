// Package store provides durable chunk storage and the SQLite
// implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kindredlabs/recall/internal/model"
)

// ErrNotFound is returned when a chunk id does not exist.
var ErrNotFound = errors.New("chunk not found")

// ListParams holds parameters for listing chunks.
type ListParams struct {
	OwnerID    string
	ScopeID    string
	MemoryType model.MemoryType
	Limit      int
}

// Store defines the chunk storage interface.
type Store interface {
	// PutChunk stores a chunk. A chunk with an empty ID is assigned one
	// and a zero CreatedAt is set to now.
	PutChunk(ctx context.Context, c *model.Chunk) error

	// GetChunk retrieves a chunk by id.
	GetChunk(ctx context.Context, id string) (*model.Chunk, error)

	// OwnerOf returns the owner of a chunk without loading its content.
	OwnerOf(ctx context.Context, id string) (string, error)

	// ListChunks lists chunks matching the given filters, newest first.
	ListChunks(ctx context.Context, p ListParams) ([]model.Chunk, error)

	// HasContentHash reports whether the owner already stores a chunk
	// with this content hash in the given scope.
	HasContentHash(ctx context.Context, ownerID, scopeID, hash string) (bool, error)

	// DeleteChunk removes a single chunk.
	DeleteChunk(ctx context.Context, id string) error

	// DeleteByOwner removes every chunk for the owner, narrowed to
	// scopeID when non-empty. Returns the number of chunks removed.
	DeleteByOwner(ctx context.Context, ownerID, scopeID string) (int, error)

	// PurgeExpired hard-deletes chunks whose retention window has
	// passed as of now. Returns the number of chunks removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// SaveSnapshot persists the summary of a cleared context window.
	SaveSnapshot(ctx context.Context, snap model.ContextSnapshot) error

	// ListSnapshots returns an owner's context snapshots, newest first.
	ListSnapshots(ctx context.Context, ownerID string) ([]model.ContextSnapshot, error)

	// Close closes the store.
	Close() error
}
