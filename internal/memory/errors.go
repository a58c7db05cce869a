package memory

import "errors"

// Sentinel errors callers can test with errors.Is.
var (
	// ErrValidation means the input failed a construction invariant
	// and nothing was stored.
	ErrValidation = errors.New("memory: validation failed")

	// ErrEmbedding means the embedding provider failed for the query.
	// Ingestion never returns it; chunks that fail to embed are stored
	// unindexed and reported via IngestResult.Degraded.
	ErrEmbedding = errors.New("memory: embedding failed")

	// ErrIndexUnavailable means the vector index rejected an operation
	// and no fallback could serve it.
	ErrIndexUnavailable = errors.New("memory: index unavailable")

	// ErrOwnership means the caller tried to touch another owner's
	// memory. Always rejected, never silently ignored.
	ErrOwnership = errors.New("memory: chunk belongs to a different owner")
)
