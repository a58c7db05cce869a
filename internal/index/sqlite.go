package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/model"
)

// SQLiteIndex stores vectors in an embedded SQLite database. Rows are
// pre-filtered by owner and scope in SQL; similarity is computed in Go
// over the surviving candidates. Durable without a server.
type SQLiteIndex struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteIndex opens or creates a SQLite-backed index at the given
// path.
func NewSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite index requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	idx := &SQLiteIndex{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return idx, nil
}

func (idx *SQLiteIndex) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vectors (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		scope_id         TEXT NOT NULL,
		content          TEXT NOT NULL,
		embedding        TEXT,
		memory_type      TEXT NOT NULL,
		retention_policy TEXT NOT NULL,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vectors_owner ON vectors(owner_id, scope_id);
	`
	_, err := idx.db.Exec(schema)
	return err
}

func (idx *SQLiteIndex) Name() string { return "sqlite" }

func (idx *SQLiteIndex) Insert(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), idx.entropy).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var embJSON *string
	if len(rec.Vector) > 0 {
		b, err := json.Marshal(rec.Vector)
		if err != nil {
			return "", fmt.Errorf("encode embedding: %w", err)
		}
		s := string(b)
		embJSON = &s
	}

	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO vectors (id, owner_id, scope_id, content, embedding, memory_type, retention_policy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.ScopeID, rec.Text, embJSON,
		string(rec.MemoryType), string(rec.RetentionPolicy), rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert vector: %w", err)
	}
	return rec.ID, nil
}

func (idx *SQLiteIndex) Search(ctx context.Context, ownerID string, query embedding.Vector, limit int, scopeID string, f *Filters) ([]Hit, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if limit <= 0 {
		limit = 10
	}

	where := []string{"owner_id = ?", "embedding IS NOT NULL"}
	args := []interface{}{ownerID}
	if scopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, scopeID)
	}
	if f != nil && f.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(f.MemoryType))
	}

	q := `SELECT id, owner_id, scope_id, content, embedding, memory_type, retention_policy, created_at
	      FROM vectors WHERE ` + strings.Join(where, " AND ")

	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		rec, embJSON, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		var vec embedding.Vector
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		rec.Vector = vec
		hits = append(hits, Hit{Record: rec, Score: embedding.CosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (idx *SQLiteIndex) Delete(ctx context.Context, id string) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id)
	return err
}

func (idx *SQLiteIndex) DeleteByOwner(ctx context.Context, ownerID, scopeID string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	if scopeID != "" {
		_, err := idx.db.ExecContext(ctx, `DELETE FROM vectors WHERE owner_id = ? AND scope_id = ?`, ownerID, scopeID)
		return err
	}
	_, err := idx.db.ExecContext(ctx, `DELETE FROM vectors WHERE owner_id = ?`, ownerID)
	return err
}

func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, string, error) {
	var rec Record
	var memoryType, retention, createdAt string
	var embJSON sql.NullString

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.ScopeID, &rec.Text, &embJSON,
		&memoryType, &retention, &createdAt)
	if err != nil {
		return rec, "", err
	}
	rec.MemoryType = model.MemoryType(memoryType)
	rec.RetentionPolicy = model.RetentionPolicy(retention)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return rec, embJSON.String, nil
}
