package store

import (
	"context"
	"errors"
	"strings"

	"github.com/kindredlabs/recall/internal/model"
)

// ExportOwner returns every chunk belonging to the owner, optionally
// narrowed to a scope, in creation order.
func (s *SQLiteStore) ExportOwner(ctx context.Context, ownerID, scopeID string) ([]model.Chunk, error) {
	if ownerID == "" {
		return nil, errors.New("export requires an owner id")
	}

	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	if scopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, scopeID)
	}

	query := chunkSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ImportChunks stores chunks from an export. Chunks whose content the
// owner already holds in the same scope are skipped rather than
// duplicated. Returns the number of chunks actually imported.
func (s *SQLiteStore) ImportChunks(ctx context.Context, chunks []model.Chunk) (int, error) {
	imported := 0
	for i := range chunks {
		c := chunks[i]
		if c.ContentHash == "" {
			c.ContentHash = model.HashContent(c.Content)
		}
		dup, err := s.HasContentHash(ctx, c.OwnerID, c.ScopeID, c.ContentHash)
		if err != nil {
			return imported, err
		}
		if dup {
			continue
		}
		// Imported chunks get fresh ids so two imports of the same
		// export cannot collide with locally created chunks.
		c.ID = ""
		if err := s.PutChunk(ctx, &c); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
