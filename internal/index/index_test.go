package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kindredlabs/recall/internal/embedding"
	"github.com/kindredlabs/recall/internal/model"
)

// backends under test; pgvector needs a server and is exercised in
// integration environments instead.
func testBackends(t *testing.T) map[string]Index {
	t.Helper()

	mem, err := NewMemoryIndex("")
	if err != nil {
		t.Fatalf("memory index: %v", err)
	}
	sq, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("sqlite index: %v", err)
	}
	t.Cleanup(func() {
		mem.Close()
		sq.Close()
	})
	return map[string]Index{"memory": mem, "sqlite": sq}
}

func insertTestRecord(t *testing.T, idx Index, owner, scope, text string, vec embedding.Vector) string {
	t.Helper()
	id, err := idx.Insert(context.Background(), Record{
		OwnerID:         owner,
		ScopeID:         scope,
		Text:            text,
		Vector:          vec,
		MemoryType:      model.MemoryFactual,
		RetentionPolicy: model.RetentionLongTerm,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	return id
}

func TestSearch_OwnerIsolation(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertTestRecord(t, idx, "u1", "c1", "u1 memory", embedding.Vector{1, 0, 0})
			insertTestRecord(t, idx, "u2", "c1", "u2 memory", embedding.Vector{1, 0, 0})

			hits, err := idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 10, "", nil)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(hits) != 1 {
				t.Fatalf("expected 1 hit, got %d", len(hits))
			}
			if hits[0].OwnerID != "u1" {
				t.Errorf("leaked record from owner %q", hits[0].OwnerID)
			}
		})
	}
}

func TestSearch_RequiresOwner(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := idx.Search(context.Background(), "", embedding.Vector{1}, 10, "", nil)
			if err != ErrMissingOwner {
				t.Errorf("expected ErrMissingOwner, got %v", err)
			}
		})
	}
}

func TestSearch_ScopeAndTypeFilters(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertTestRecord(t, idx, "u1", "companion-a", "memory a", embedding.Vector{1, 0, 0})
			insertTestRecord(t, idx, "u1", "companion-b", "memory b", embedding.Vector{1, 0, 0})

			idx.Insert(ctx, Record{
				OwnerID: "u1", ScopeID: "companion-a", Text: "emotional one",
				Vector:     embedding.Vector{0, 1, 0},
				MemoryType: model.MemoryEmotional, RetentionPolicy: model.RetentionLongTerm,
				CreatedAt: time.Now().UTC(),
			})

			scoped, err := idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 10, "companion-a", nil)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			for _, h := range scoped {
				if h.ScopeID != "companion-a" {
					t.Errorf("scope filter leaked %q", h.ScopeID)
				}
			}
			if len(scoped) != 2 {
				t.Errorf("expected 2 scoped hits, got %d", len(scoped))
			}

			typed, err := idx.Search(ctx, "u1", embedding.Vector{0, 1, 0}, 10, "",
				&Filters{MemoryType: model.MemoryEmotional})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(typed) != 1 || typed[0].MemoryType != model.MemoryEmotional {
				t.Errorf("type filter failed: %v", typed)
			}
		})
	}
}

func TestSearch_OrderAndLimit(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertTestRecord(t, idx, "u1", "c1", "far", embedding.Vector{0, 1, 0})
			insertTestRecord(t, idx, "u1", "c1", "near", embedding.Vector{1, 0.1, 0})
			insertTestRecord(t, idx, "u1", "c1", "exact", embedding.Vector{1, 0, 0})

			hits, err := idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 2, "", nil)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(hits) != 2 {
				t.Fatalf("expected limit 2, got %d", len(hits))
			}
			if hits[0].Text != "exact" {
				t.Errorf("expected best hit first, got %q", hits[0].Text)
			}
			if hits[0].Score < hits[1].Score {
				t.Error("hits not in descending score order")
			}
		})
	}
}

func TestDelete_SingleRecord(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := insertTestRecord(t, idx, "u1", "c1", "doomed", embedding.Vector{1, 0, 0})
			insertTestRecord(t, idx, "u1", "c1", "kept", embedding.Vector{1, 0, 0})

			if err := idx.Delete(ctx, id); err != nil {
				t.Fatalf("delete: %v", err)
			}
			hits, _ := idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 10, "", nil)
			if len(hits) != 1 || hits[0].Text != "kept" {
				t.Errorf("expected only the kept record, got %v", hits)
			}
		})
	}
}

func TestDeleteByOwner(t *testing.T) {
	for name, idx := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertTestRecord(t, idx, "u1", "c1", "a", embedding.Vector{1, 0, 0})
			insertTestRecord(t, idx, "u1", "c2", "b", embedding.Vector{1, 0, 0})
			insertTestRecord(t, idx, "u2", "c1", "c", embedding.Vector{1, 0, 0})

			if err := idx.DeleteByOwner(ctx, "u1", "c1"); err != nil {
				t.Fatalf("delete scoped: %v", err)
			}
			hits, _ := idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 10, "", nil)
			if len(hits) != 1 || hits[0].ScopeID != "c2" {
				t.Errorf("scoped delete wrong: %v", hits)
			}

			if err := idx.DeleteByOwner(ctx, "u1", ""); err != nil {
				t.Fatalf("delete all: %v", err)
			}
			hits, _ = idx.Search(ctx, "u1", embedding.Vector{1, 0, 0}, 10, "", nil)
			if len(hits) != 0 {
				t.Errorf("expected no hits after owner delete, got %d", len(hits))
			}

			// Other owners untouched.
			hits, _ = idx.Search(ctx, "u2", embedding.Vector{1, 0, 0}, 10, "", nil)
			if len(hits) != 1 {
				t.Errorf("other owner affected: %v", hits)
			}
		})
	}
}

func TestMemoryIndex_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")

	idx, _ := NewMemoryIndex(path)
	insertTestRecord(t, idx, "u1", "c1", "persisted", embedding.Vector{1, 0, 0})
	if err := idx.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := NewMemoryIndex(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("expected 1 record after reload, got %d", reloaded.Len())
	}
	hits, _ := reloaded.Search(context.Background(), "u1", embedding.Vector{1, 0, 0}, 10, "", nil)
	if len(hits) != 1 || hits[0].Text != "persisted" {
		t.Errorf("reloaded search wrong: %v", hits)
	}
}

func TestOpenWithFallback(t *testing.T) {
	idx, status := OpenWithFallback(Config{Backend: "pgvector", DSN: ""})
	if !status.Degraded {
		t.Error("expected degraded status for unreachable backend")
	}
	if status.Err == nil {
		t.Error("expected the open failure to be reported")
	}
	if idx.Name() != "memory" {
		t.Errorf("expected memory fallback, got %q", idx.Name())
	}

	_, status = OpenWithFallback(Config{Backend: "memory"})
	if status.Degraded {
		t.Error("memory backend should not be degraded")
	}
}
