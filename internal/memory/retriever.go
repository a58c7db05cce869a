package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kindredlabs/recall/internal/index"
	"github.com/kindredlabs/recall/internal/model"
)

// RankWeights blends similarity against recency when scoring results.
type RankWeights struct {
	Similarity float64
	Recency    float64
}

// DefaultRankWeights favors semantic match but lets fresher memories
// win close calls.
var DefaultRankWeights = RankWeights{Similarity: 0.7, Recency: 0.3}

// recencyHorizonDays is the age at which a memory's recency score
// reaches zero.
const recencyHorizonDays = 365.0

// RetrieveParams holds parameters for a memory search.
type RetrieveParams struct {
	OwnerID    string
	ScopeID    string
	Query      string
	Limit      int
	MemoryType model.MemoryType
	Since      time.Time   // drop memories created before this, when set
	Until      time.Time   // drop memories created after this, when set
	Weights    RankWeights // zero value means DefaultRankWeights
}

// Scored is one retrieval result with its score breakdown.
type Scored struct {
	ID         string           `json:"id"`
	Content    string           `json:"content"`
	MemoryType model.MemoryType `json:"memory_type"`
	CreatedAt  string           `json:"created_at"`
	Similarity float64          `json:"similarity"`
	Recency    float64          `json:"recency"`
	Score      float64          `json:"score"`
}

// Retrieve embeds the query, searches the index for the owner's
// memories, drops expired chunks, and ranks the rest by a blend of
// similarity and recency. Results are deterministic: equal scores keep
// a stable order by id.
func (m *MemoryStore) Retrieve(ctx context.Context, p RetrieveParams) ([]Scored, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if p.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	weights := p.Weights
	if weights.Similarity == 0 && weights.Recency == 0 {
		weights = DefaultRankWeights
	}
	if p.MemoryType != "" && !model.ValidMemoryTypes[p.MemoryType] {
		return nil, fmt.Errorf("%w: invalid memory type %q", ErrValidation, p.MemoryType)
	}

	queryVec, err := m.embedder.Embed(ctx, p.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	var filters *index.Filters
	if p.MemoryType != "" {
		filters = &index.Filters{MemoryType: p.MemoryType}
	}

	// Over-fetch twice the limit so post-filtering has room to drop
	// expired or out-of-range hits.
	hits, err := m.idx.Search(ctx, p.OwnerID, queryVec, p.Limit*2, p.ScopeID, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	now := m.now()
	var results []Scored
	for _, h := range hits {
		if h.RetentionPolicy.Expired(h.CreatedAt, now) {
			continue
		}
		if !p.Since.IsZero() && h.CreatedAt.Before(p.Since) {
			continue
		}
		if !p.Until.IsZero() && h.CreatedAt.After(p.Until) {
			continue
		}
		ageDays := now.Sub(h.CreatedAt).Hours() / 24
		recency := 1 - ageDays/recencyHorizonDays
		if recency < 0 {
			recency = 0
		}
		results = append(results, Scored{
			ID:         h.ID,
			Content:    h.Text,
			MemoryType: h.MemoryType,
			CreatedAt:  h.CreatedAt.Format(time.RFC3339),
			Similarity: h.Score,
			Recency:    recency,
			Score:      weights.Similarity*h.Score + weights.Recency*recency,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > p.Limit {
		results = results[:p.Limit]
	}
	return results, nil
}
