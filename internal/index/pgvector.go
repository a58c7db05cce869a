package index

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/model"
)

// PGVectorIndex stores vectors in Postgres with the pgvector extension.
// Similarity is computed server-side with the cosine distance operator,
// so search cost does not grow with the Go process.
type PGVectorIndex struct {
	db      *sql.DB
	dims    int
	entropy *rand.Rand
}

// NewPGVectorIndex connects to Postgres at dsn and ensures the schema
// exists. The pgvector extension must be installed on the server.
func NewPGVectorIndex(dsn string, dims int) (*PGVectorIndex, error) {
	if dsn == "" {
		return nil, errors.New("pgvector index requires a DSN")
	}
	if dims <= 0 {
		dims = embedding.DefaultDims
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	idx := &PGVectorIndex{
		db:      db,
		dims:    dims,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate pgvector schema")
	}
	return idx, nil
}

func (idx *PGVectorIndex) migrate() error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_vectors (
			id               TEXT PRIMARY KEY,
			owner_id         TEXT NOT NULL,
			scope_id         TEXT NOT NULL,
			content          TEXT NOT NULL,
			embedding        vector(%d),
			memory_type      TEXT NOT NULL,
			retention_policy TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL
		)`, idx.dims),
		`CREATE INDEX IF NOT EXISTS idx_memory_vectors_owner ON memory_vectors(owner_id, scope_id)`,
	}
	for _, s := range stmts {
		if _, err := idx.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (idx *PGVectorIndex) Name() string { return "pgvector" }

func (idx *PGVectorIndex) Insert(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), idx.entropy).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if len(rec.Vector) != 0 && len(rec.Vector) != idx.dims {
		return "", errors.Errorf("vector has %d dims, index expects %d", len(rec.Vector), idx.dims)
	}

	var emb interface{}
	if len(rec.Vector) > 0 {
		emb = pgvector.NewVector(rec.Vector)
	}

	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO memory_vectors (id, owner_id, scope_id, content, embedding, memory_type, retention_policy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.OwnerID, rec.ScopeID, rec.Text, emb,
		string(rec.MemoryType), string(rec.RetentionPolicy), rec.CreatedAt)
	if err != nil {
		return "", errors.Wrap(err, "insert vector")
	}
	return rec.ID, nil
}

func (idx *PGVectorIndex) Search(ctx context.Context, ownerID string, query embedding.Vector, limit int, scopeID string, f *Filters) ([]Hit, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if limit <= 0 {
		limit = 10
	}

	where := []string{"owner_id = $2", "embedding IS NOT NULL"}
	args := []interface{}{pgvector.NewVector(query), ownerID}
	if scopeID != "" {
		args = append(args, scopeID)
		where = append(where, fmt.Sprintf("scope_id = $%d", len(args)))
	}
	if f != nil && f.MemoryType != "" {
		args = append(args, string(f.MemoryType))
		where = append(where, fmt.Sprintf("memory_type = $%d", len(args)))
	}
	args = append(args, limit)

	q := fmt.Sprintf(
		`SELECT id, owner_id, scope_id, content, memory_type, retention_policy, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM memory_vectors
		 WHERE %s
		 ORDER BY embedding <=> $1, id
		 LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search vectors")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var memoryType, retention string
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.ScopeID, &h.Text,
			&memoryType, &retention, &h.CreatedAt, &h.Score); err != nil {
			return nil, errors.Wrap(err, "scan vector row")
		}
		h.MemoryType = model.MemoryType(memoryType)
		h.RetentionPolicy = model.RetentionPolicy(retention)
		hits = append(hits, h)
	}
	return hits, errors.Wrap(rows.Err(), "iterate vector rows")
}

func (idx *PGVectorIndex) Delete(ctx context.Context, id string) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM memory_vectors WHERE id = $1`, id)
	return errors.Wrap(err, "delete vector")
}

func (idx *PGVectorIndex) DeleteByOwner(ctx context.Context, ownerID, scopeID string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	if scopeID != "" {
		_, err := idx.db.ExecContext(ctx,
			`DELETE FROM memory_vectors WHERE owner_id = $1 AND scope_id = $2`, ownerID, scopeID)
		return errors.Wrap(err, "delete owner vectors")
	}
	_, err := idx.db.ExecContext(ctx, `DELETE FROM memory_vectors WHERE owner_id = $1`, ownerID)
	return errors.Wrap(err, "delete owner vectors")
}

func (idx *PGVectorIndex) Close() error {
	return idx.db.Close()
}
