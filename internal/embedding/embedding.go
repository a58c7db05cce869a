// Package embedding provides a pluggable interface for text embedding
// providers, with a deterministic offline fallback and a disk-persisted
// cache.
package embedding

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// DefaultDims is the default embedding dimension.
const DefaultDims = 384

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text. EmbedBatch must return
// one vector per input, in input order, with the same values (within
// floating tolerance) as embedding each text individually.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-norm inputs.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match pairs a candidate index with its similarity score.
type Match struct {
	Index int
	Score float64
}

// MostSimilar scores every candidate against the query and returns the
// top K matches in descending score order. Ties keep candidate order.
func MostSimilar(query Vector, candidates []Vector, topK int) []Match {
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Index: i, Score: CosineSimilarity(query, c)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && topK < len(matches) {
		matches = matches[:topK]
	}
	return matches
}

// Normalize scales v to unit L2 norm in place. A zero vector is left
// unchanged.
func Normalize(v Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// NewFromEnv creates an embedder from environment variables.
// RECALL_EMBED_PROVIDER: "openai" | "ollama" | "" (hash fallback)
// RECALL_EMBED_MODEL: model name
// RECALL_EMBED_URL: base URL override
// RECALL_EMBED_DIMS: vector dimension
// OPENAI_API_KEY: for the openai provider
// The result is always usable: with no provider configured the
// deterministic hash fallback is returned. The embedder is wrapped in a
// disk-persisted cache unless RECALL_EMBED_CACHE is set to "off".
func NewFromEnv() Embedder {
	dims := DefaultDims
	if d, err := strconv.Atoi(os.Getenv("RECALL_EMBED_DIMS")); err == nil && d > 0 {
		dims = d
	}

	var inner Embedder
	switch os.Getenv("RECALL_EMBED_PROVIDER") {
	case "openai":
		inner = NewOpenAIEmbedder(os.Getenv("RECALL_EMBED_URL"), os.Getenv("OPENAI_API_KEY"),
			os.Getenv("RECALL_EMBED_MODEL"), dims)
	case "ollama":
		inner = NewOllamaEmbedder(os.Getenv("RECALL_EMBED_MODEL"))
	default:
		inner = NewHashEmbedder(dims)
	}

	cachePath := os.Getenv("RECALL_EMBED_CACHE")
	if cachePath == "off" {
		return inner
	}
	if cachePath == "" {
		home, _ := os.UserHomeDir()
		cachePath = filepath.Join(home, ".recall", "embed_cache.json")
	}
	cached, err := NewCache(inner, DefaultCacheSize, cachePath)
	if err != nil {
		return inner
	}
	return cached
}
