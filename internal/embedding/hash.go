package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashEmbedder is the deterministic fallback provider: a bag-of-words
// vector where each token's frequency lands in a hashed bucket. It needs
// no network and no trained model, and doubles as the reference
// implementation for tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with the given dimension.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDims
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	counts := tokenCounts(text)

	vec := make(Vector, e.dims)
	for token, n := range counts {
		idx := xxhash.Sum64String(token) % uint64(e.dims)
		vec[idx] += float32(n)
	}
	Normalize(vec)
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	vectors := make([]Vector, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

// tokenCounts lowercases the text and counts word tokens. A token is a
// maximal run of letters, digits, and underscores.
func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		counts[token]++
	}
	return counts
}
