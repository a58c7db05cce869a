package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/kindredlabs/recall/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		scope_id         TEXT NOT NULL,
		content          TEXT NOT NULL,
		embedding        TEXT,
		content_hash     TEXT NOT NULL,
		memory_type      TEXT NOT NULL,
		source_type      TEXT NOT NULL,
		retention_policy TEXT NOT NULL,
		emotions         TEXT,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_owner ON chunks(owner_id, scope_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(owner_id, scope_id, content_hash);
	CREATE INDEX IF NOT EXISTS idx_chunks_created ON chunks(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_chunks_retention ON chunks(retention_policy, created_at);

	CREATE TABLE IF NOT EXISTS context_snapshots (
		owner_id     TEXT NOT NULL,
		scope_id     TEXT NOT NULL,
		session_id   TEXT NOT NULL,
		summary      TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		PRIMARY KEY (owner_id, scope_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_owner ON context_snapshots(owner_id, last_updated DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutChunk stores a chunk, assigning an id and creation time if absent.
func (s *SQLiteStore) PutChunk(ctx context.Context, c *model.Chunk) error {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.ContentHash == "" {
		c.ContentHash = model.HashContent(c.Content)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	embJSON, err := marshalNullable(c.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	emoJSON, err := marshalNullable(c.Emotions)
	if err != nil {
		return fmt.Errorf("encode emotions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, owner_id, scope_id, content, embedding, content_hash,
		                     memory_type, source_type, retention_policy, emotions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.ScopeID, c.Content, embJSON, c.ContentHash,
		string(c.MemoryType), string(c.SourceType), string(c.RetentionPolicy),
		emoJSON, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by id.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// OwnerOf returns the owner id of a chunk.
func (s *SQLiteStore) OwnerOf(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM chunks WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return owner, err
}

// ListChunks lists chunks matching the filters, newest first.
func (s *SQLiteStore) ListChunks(ctx context.Context, p ListParams) ([]model.Chunk, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if p.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, p.OwnerID)
	}
	if p.ScopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, p.ScopeID)
	}
	if p.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(p.MemoryType))
	}

	query := chunkSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}

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

// HasContentHash reports whether the owner already stores this content
// in the given scope.
func (s *SQLiteStore) HasContentHash(ctx context.Context, ownerID, scopeID, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE owner_id = ? AND scope_id = ? AND content_hash = ?`,
		ownerID, scopeID, hash).Scan(&n)
	return n > 0, err
}

// DeleteChunk removes a single chunk.
func (s *SQLiteStore) DeleteChunk(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all of an owner's chunks, narrowed to scopeID
// when non-empty.
func (s *SQLiteStore) DeleteByOwner(ctx context.Context, ownerID, scopeID string) (int, error) {
	var res sql.Result
	var err error
	if scopeID != "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM chunks WHERE owner_id = ? AND scope_id = ?`, ownerID, scopeID)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM chunks WHERE owner_id = ?`, ownerID)
	}
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeExpired hard-deletes chunks whose retention window has passed.
// Expiry is normally soft; this is the explicit reclamation path.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for _, policy := range []model.RetentionPolicy{model.RetentionShortTerm, model.RetentionMidTerm} {
		window, ok := policy.Window()
		if !ok {
			continue
		}
		cutoff := now.Add(-window).UTC().Format(time.RFC3339)
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM chunks WHERE retention_policy = ? AND created_at < ?`,
			string(policy), cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", policy, err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

// SaveSnapshot upserts the summary of a cleared context window.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.ContextSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_snapshots (owner_id, scope_id, session_id, summary, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, scope_id, session_id) DO UPDATE SET
		   summary = excluded.summary, last_updated = excluded.last_updated`,
		snap.OwnerID, snap.ScopeID, snap.SessionID, snap.Summary,
		snap.LastUpdated.UTC().Format(time.RFC3339))
	return err
}

// ListSnapshots returns an owner's context snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, ownerID string) ([]model.ContextSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, scope_id, session_id, summary, last_updated
		 FROM context_snapshots WHERE owner_id = ? ORDER BY last_updated DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.ContextSnapshot
	for rows.Next() {
		var snap model.ContextSnapshot
		var updated string
		if err := rows.Scan(&snap.OwnerID, &snap.ScopeID, &snap.SessionID, &snap.Summary, &updated); err != nil {
			return nil, err
		}
		snap.LastUpdated, _ = time.Parse(time.RFC3339, updated)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const chunkSelect = `SELECT id, owner_id, scope_id, content, embedding, content_hash,
       memory_type, source_type, retention_policy, emotions, created_at FROM chunks`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (model.Chunk, error) {
	var c model.Chunk
	var embJSON, emoJSON sql.NullString
	var memoryType, sourceType, retention, createdAt string

	err := row.Scan(&c.ID, &c.OwnerID, &c.ScopeID, &c.Content, &embJSON, &c.ContentHash,
		&memoryType, &sourceType, &retention, &emoJSON, &createdAt)
	if err != nil {
		return c, err
	}

	if embJSON.Valid {
		json.Unmarshal([]byte(embJSON.String), &c.Embedding)
	}
	if emoJSON.Valid {
		json.Unmarshal([]byte(emoJSON.String), &c.Emotions)
	}
	c.MemoryType = model.MemoryType(memoryType)
	c.SourceType = model.SourceType(sourceType)
	c.RetentionPolicy = model.RetentionPolicy(retention)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case []float32:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
