package store

import (
	"context"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath       string         `json:"db_path"`
	DBSizeBytes  int64          `json:"db_size_bytes"`
	TotalChunks  int            `json:"total_chunks"`
	Snapshots    int            `json:"snapshots"`
	ByMemoryType map[string]int `json:"by_memory_type,omitempty"`
	BySourceType map[string]int `json:"by_source_type,omitempty"`
	OldestChunk  *time.Time     `json:"oldest_chunk,omitempty"`
	NewestChunk  *time.Time     `json:"newest_chunk,omitempty"`
	Owners       []OwnerStats   `json:"owners"`
}

// OwnerStats holds per-owner counts.
type OwnerStats struct {
	OwnerID string `json:"owner_id"`
	Chunks  int    `json:"chunks"`
	Scopes  int    `json:"scopes"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.TotalChunks)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM context_snapshots`).Scan(&st.Snapshots)

	var oldest, newest string
	if err := s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM chunks`).Scan(&oldest, &newest); err == nil {
		if t, err := time.Parse(time.RFC3339, oldest); err == nil {
			st.OldestChunk = &t
		}
		if t, err := time.Parse(time.RFC3339, newest); err == nil {
			st.NewestChunk = &t
		}
	}

	st.ByMemoryType = s.countBy(ctx, "memory_type")
	st.BySourceType = s.countBy(ctx, "source_type")

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, COUNT(*) as cnt, COUNT(DISTINCT scope_id) as scopes
		FROM chunks
		GROUP BY owner_id ORDER BY cnt DESC, owner_id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var o OwnerStats
		rows.Scan(&o.OwnerID, &o.Chunks, &o.Scopes)
		st.Owners = append(st.Owners, o)
	}

	return st, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string) map[string]int {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM chunks GROUP BY `+column)
	if err != nil {
		return nil
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var k string
		var n int
		if rows.Scan(&k, &n) == nil {
			counts[k] = n
		}
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}
