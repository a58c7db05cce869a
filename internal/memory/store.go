// Package memory orchestrates chunking, embedding, storage, and
// retrieval into a single memory store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kindredlabs/recall/internal/chunker"
	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/index"
	"github.com/kindredlabs/recall/internal/model"
	"github.com/kindredlabs/recall/internal/store"
)

// MemoryStore coordinates the chunker, embedder, durable store, and
// vector index. It is the only layer that writes to both stores, so it
// is where degraded states are detected and reported.
type MemoryStore struct {
	store    store.Store
	idx      index.Index
	embedder embedding.Embedder
	chunkOpt chunker.Options
	status   index.Status
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithChunkOptions overrides the default chunk sizing.
func WithChunkOptions(opts chunker.Options) Option {
	return func(m *MemoryStore) { m.chunkOpt = opts }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *MemoryStore) { m.log = log }
}

// WithClock overrides the time source. Tests use this to age memories.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) { m.now = now }
}

// New creates a MemoryStore over the given components. status reports
// whether the index came up degraded; it is logged once and echoed in
// every IngestResult while degraded.
func New(s store.Store, idx index.Index, emb embedding.Embedder, status index.Status, opts ...Option) *MemoryStore {
	m := &MemoryStore{
		store:    s,
		idx:      idx,
		embedder: emb,
		chunkOpt: chunker.DefaultOptions(),
		status:   status,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if status.Degraded {
		m.log.Warn("vector index degraded, using in-memory fallback",
			"backend", status.Backend, "error", status.Err)
	}
	return m
}

// IngestParams holds parameters for storing new memory content.
type IngestParams struct {
	OwnerID   string
	ScopeID   string
	Content   string
	Source    model.SourceType
	Retention model.RetentionPolicy
}

// IngestResult reports what Ingest actually did. Degraded is true when
// any chunk was stored without being searchable; Reasons says why.
type IngestResult struct {
	ChunkIDs []string `json:"chunk_ids"`
	Skipped  int      `json:"skipped"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Ingest cleans, chunks, classifies, embeds, and stores content for an
// owner. Duplicate chunks (same content already stored in the scope)
// are skipped. Embedding failures degrade the affected chunks to
// store-only rather than failing the whole call; validation failures
// fail the whole call before anything is written.
func (m *MemoryStore) Ingest(ctx context.Context, p IngestParams) (*IngestResult, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if p.ScopeID == "" {
		return nil, fmt.Errorf("%w: scope id is required", ErrValidation)
	}
	if p.Source == "" {
		p.Source = model.SourceText
	}
	if p.Retention == "" {
		p.Retention = model.RetentionLongTerm
	}
	if !model.ValidSourceTypes[p.Source] {
		return nil, fmt.Errorf("%w: invalid source type %q", ErrValidation, p.Source)
	}
	if !model.ValidRetentionPolicies[p.Retention] {
		return nil, fmt.Errorf("%w: invalid retention policy %q", ErrValidation, p.Retention)
	}

	content := chunker.CleanText(p.Content)
	if len(content) < model.MinContentLen {
		return nil, fmt.Errorf("%w: content must be at least %d characters", ErrValidation, model.MinContentLen)
	}

	pieces := chunker.Chunk(content, m.chunkOpt)
	res := &IngestResult{}
	if m.status.Degraded {
		res.Degraded = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("index fallback to %s: %v", m.status.Backend, m.status.Err))
	}

	// Drop duplicates and out-of-bounds pieces before embedding so the
	// provider is only called for chunks that will be stored.
	var keep []string
	for _, piece := range pieces {
		if len(piece) > model.MaxContentLen {
			res.Skipped++
			res.Reasons = append(res.Reasons, fmt.Sprintf("chunk exceeds %d characters", model.MaxContentLen))
			continue
		}
		if len(strings.TrimSpace(piece)) < model.MinContentLen {
			res.Skipped++
			continue
		}
		dup, err := m.store.HasContentHash(ctx, p.OwnerID, p.ScopeID, model.HashContent(piece))
		if err != nil {
			return nil, fmt.Errorf("dedup check: %w", err)
		}
		if dup {
			res.Skipped++
			continue
		}
		keep = append(keep, piece)
	}
	if len(keep) == 0 {
		return res, nil
	}

	vectors := m.embedAll(ctx, keep, res)

	createdAt := m.now().UTC()
	for i, piece := range keep {
		c := model.Chunk{
			OwnerID:         p.OwnerID,
			ScopeID:         p.ScopeID,
			Content:         piece,
			Embedding:       vectors[i],
			ContentHash:     model.HashContent(piece),
			MemoryType:      Classify(piece),
			SourceType:      p.Source,
			RetentionPolicy: p.Retention,
			Emotions:        ExtractEmotions(piece),
			CreatedAt:       createdAt,
		}
		if err := m.store.PutChunk(ctx, &c); err != nil {
			return nil, fmt.Errorf("store chunk: %w", err)
		}
		res.ChunkIDs = append(res.ChunkIDs, c.ID)

		if len(c.Embedding) == 0 {
			continue
		}
		_, err := m.idx.Insert(ctx, index.Record{
			ID:              c.ID,
			OwnerID:         c.OwnerID,
			ScopeID:         c.ScopeID,
			Text:            c.Content,
			Vector:          c.Embedding,
			MemoryType:      c.MemoryType,
			RetentionPolicy: c.RetentionPolicy,
			CreatedAt:       c.CreatedAt,
		})
		if err != nil {
			// Chunk stays durable in the store; only search misses it.
			res.Degraded = true
			res.Reasons = append(res.Reasons, fmt.Sprintf("index insert failed: %v", err))
			m.log.Warn("chunk stored but not indexed", "chunk_id", c.ID, "error", err)
		}
	}
	return res, nil
}

// embedAll returns one vector per piece, nil where embedding failed.
// A batch failure retries each piece individually before giving up on
// any of them.
func (m *MemoryStore) embedAll(ctx context.Context, pieces []string, res *IngestResult) []embedding.Vector {
	vectors, err := m.embedder.EmbedBatch(ctx, pieces)
	if err == nil && len(vectors) == len(pieces) {
		return vectors
	}

	m.log.Warn("batch embedding failed, retrying per chunk", "error", err)
	vectors = make([]embedding.Vector, len(pieces))
	for i, piece := range pieces {
		v, err := m.embedder.Embed(ctx, piece)
		if err != nil {
			res.Degraded = true
			res.Reasons = append(res.Reasons, fmt.Sprintf("embedding failed: %v", err))
			continue
		}
		vectors[i] = v
	}
	return vectors
}

// Get returns a chunk, enforcing that it belongs to ownerID.
func (m *MemoryStore) Get(ctx context.Context, ownerID, chunkID string) (*model.Chunk, error) {
	c, err := m.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrOwnership
	}
	return c, nil
}

// Delete removes a single chunk after verifying ownership.
func (m *MemoryStore) Delete(ctx context.Context, ownerID, chunkID string) error {
	owner, err := m.store.OwnerOf(ctx, chunkID)
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrOwnership
	}
	if err := m.store.DeleteChunk(ctx, chunkID); err != nil {
		return err
	}
	if err := m.idx.Delete(ctx, chunkID); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// DeleteOwner removes every chunk for an owner from both the store and
// the index, narrowed to scopeID when non-empty. Returns the number of
// stored chunks removed.
func (m *MemoryStore) DeleteOwner(ctx context.Context, ownerID, scopeID string) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	n, err := m.store.DeleteByOwner(ctx, ownerID, scopeID)
	if err != nil {
		return n, err
	}
	if err := m.idx.DeleteByOwner(ctx, ownerID, scopeID); err != nil {
		return n, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	m.log.Info("owner memories deleted", "owner_id", ownerID, "scope_id", scopeID, "chunks", n)
	return n, nil
}

// PurgeExpired hard-deletes chunks whose retention window has passed.
func (m *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.store.PurgeExpired(ctx, m.now())
	if err != nil {
		return n, err
	}
	if n > 0 {
		m.log.Info("expired chunks purged", "count", n)
	}
	return n, nil
}

// IndexStatus reports which index backend is serving searches.
func (m *MemoryStore) IndexStatus() index.Status {
	return m.status
}
