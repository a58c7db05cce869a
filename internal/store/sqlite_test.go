package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kindredlabs/recall/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChunk(owner, scope, content string) *model.Chunk {
	return &model.Chunk{
		OwnerID:         owner,
		ScopeID:         scope,
		Content:         content,
		MemoryType:      model.MemoryFactual,
		SourceType:      model.SourceText,
		RetentionPolicy: model.RetentionLongTerm,
	}
}

func TestPutAndGetChunk(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := testChunk("u1", "c1", "We adopted a golden retriever named Biscuit.")
	c.Embedding = []float32{0.1, 0.2, 0.3}
	c.Emotions = []string{"joy"}
	if err := s.PutChunk(ctx, c); err != nil {
		t.Fatalf("put: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected assigned id")
	}
	if c.ContentHash != model.HashContent(c.Content) {
		t.Error("content hash not filled")
	}

	got, err := s.GetChunk(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != c.Content {
		t.Errorf("content mismatch: %q", got.Content)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("embedding not round-tripped: %v", got.Embedding)
	}
	if len(got.Emotions) != 1 || got.Emotions[0] != "joy" {
		t.Errorf("emotions not round-tripped: %v", got.Emotions)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestPutChunk_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PutChunk(ctx, testChunk("u1", "c1", "tiny")); err == nil {
		t.Error("expected validation error for short content")
	}
	if err := s.PutChunk(ctx, testChunk("", "c1", "content long enough here")); err == nil {
		t.Error("expected validation error for missing owner")
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetChunk(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.OwnerOf(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("OwnerOf: expected ErrNotFound, got %v", err)
	}
}

func TestOwnerOf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := testChunk("u1", "c1", "Something worth remembering today.")
	s.PutChunk(ctx, c)

	owner, err := s.OwnerOf(ctx, c.ID)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != "u1" {
		t.Errorf("expected u1, got %q", owner)
	}
}

func TestHasContentHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := testChunk("u1", "c1", "The same content stored once only.")
	s.PutChunk(ctx, c)

	dup, err := s.HasContentHash(ctx, "u1", "c1", c.ContentHash)
	if err != nil {
		t.Fatalf("has hash: %v", err)
	}
	if !dup {
		t.Error("expected duplicate to be detected")
	}

	// Same content under another owner or scope is not a duplicate.
	if dup, _ := s.HasContentHash(ctx, "u2", "c1", c.ContentHash); dup {
		t.Error("hash leaked across owners")
	}
	if dup, _ := s.HasContentHash(ctx, "u1", "c2", c.ContentHash); dup {
		t.Error("hash leaked across scopes")
	}
}

func TestListChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := testChunk("u1", "c1", "First memory about the garden.")
	a.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.PutChunk(ctx, a)

	b := testChunk("u1", "c1", "Second memory about the kitchen.")
	b.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	s.PutChunk(ctx, b)

	other := testChunk("u2", "c1", "Another owner's memory entirely.")
	s.PutChunk(ctx, other)

	chunks, err := s.ListChunks(ctx, ListParams{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != b.ID {
		t.Error("expected newest first")
	}

	limited, _ := s.ListChunks(ctx, ListParams{OwnerID: "u1", Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestDeleteByOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutChunk(ctx, testChunk("u1", "c1", "Memory in the first scope."))
	s.PutChunk(ctx, testChunk("u1", "c2", "Memory in the second scope."))
	s.PutChunk(ctx, testChunk("u2", "c1", "Unrelated owner's memory."))

	n, err := s.DeleteByOwner(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("delete scoped: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	n, err = s.DeleteByOwner(ctx, "u1", "")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 remaining chunk deleted, got %d", n)
	}

	left, _ := s.ListChunks(ctx, ListParams{OwnerID: "u2"})
	if len(left) != 1 {
		t.Error("other owner's chunks affected")
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	old := testChunk("u1", "c1", "Short term memory from last month.")
	old.RetentionPolicy = model.RetentionShortTerm
	old.CreatedAt = now.Add(-31 * 24 * time.Hour)
	s.PutChunk(ctx, old)

	fresh := testChunk("u1", "c1", "Short term memory from yesterday.")
	fresh.RetentionPolicy = model.RetentionShortTerm
	fresh.CreatedAt = now.Add(-24 * time.Hour)
	s.PutChunk(ctx, fresh)

	forever := testChunk("u1", "c1", "Long term memory from years ago.")
	forever.CreatedAt = now.Add(-1000 * 24 * time.Hour)
	s.PutChunk(ctx, forever)

	n, err := s.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}

	if _, err := s.GetChunk(ctx, old.ID); err != ErrNotFound {
		t.Error("expired chunk still present")
	}
	if _, err := s.GetChunk(ctx, fresh.ID); err != nil {
		t.Error("fresh chunk purged")
	}
	if _, err := s.GetChunk(ctx, forever.ID); err != nil {
		t.Error("long_term chunk purged")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)

	s1 := testChunk("u1", "c1", "Exported memory number one here.")
	s2 := testChunk("u1", "c1", "Exported memory number two here.")
	src.PutChunk(ctx, s1)
	src.PutChunk(ctx, s2)

	chunks, err := src.ExportOwner(ctx, "u1", "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 exported, got %d", len(chunks))
	}

	dst := newTestStore(t)
	n, err := dst.ImportChunks(ctx, chunks)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	// Importing the same export again skips everything.
	n, err = dst.ImportChunks(ctx, chunks)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 on re-import, got %d", n)
	}
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap := model.ContextSnapshot{
		OwnerID: "u1", ScopeID: "c1", SessionID: "sess-1",
		Summary:     "User discussed: beach, ocean",
		LastUpdated: time.Now().UTC(),
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	// Upsert replaces the summary for the same session.
	snap.Summary = "User discussed: beach, ocean, dinner"
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}

	snaps, err := s.ListSnapshots(ctx, "u1")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Summary != snap.Summary {
		t.Errorf("summary not updated: %q", snaps[0].Summary)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutChunk(ctx, testChunk("u1", "c1", "A memory for the statistics."))
	s.PutChunk(ctx, testChunk("u1", "c2", "Another memory for statistics."))
	s.PutChunk(ctx, testChunk("u2", "c1", "A different owner's memory."))

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalChunks != 3 {
		t.Errorf("expected 3 chunks, got %d", st.TotalChunks)
	}
	if len(st.Owners) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(st.Owners))
	}
	if st.Owners[0].OwnerID != "u1" || st.Owners[0].Chunks != 2 || st.Owners[0].Scopes != 2 {
		t.Errorf("owner stats wrong: %+v", st.Owners[0])
	}
	if st.ByMemoryType["factual"] != 3 {
		t.Errorf("memory type counts wrong: %v", st.ByMemoryType)
	}
	if st.BySourceType["text"] != 3 {
		t.Errorf("source type counts wrong: %v", st.BySourceType)
	}
	if st.OldestChunk == nil || st.NewestChunk == nil {
		t.Error("expected oldest/newest timestamps")
	}
}
