package embedding

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
)

// countingEmbedder wraps HashEmbedder and counts provider calls.
type countingEmbedder struct {
	inner *HashEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dims() int { return c.inner.Dims() }

func TestCache_HitAvoidsProvider(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{inner: NewHashEmbedder(64)}
	cache, err := NewCache(inner, 100, "")
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	first, err := cache.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, _ := cache.Embed(ctx, "hello world")

	if !reflect.DeepEqual(first, second) {
		t.Error("cached vector differs")
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}
}

func TestCache_BatchResolvesHitsFirst(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{inner: NewHashEmbedder(64)}
	cache, _ := NewCache(inner, 100, "")

	cache.Embed(ctx, "already cached")
	inner.calls.Store(0)

	vectors, err := cache.EmbedBatch(ctx, []string{"already cached", "new text"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call for the miss, got %d", got)
	}

	// Order must match input order.
	direct, _ := inner.inner.Embed(ctx, "new text")
	if !reflect.DeepEqual(vectors[1], direct) {
		t.Error("batch result order does not match input order")
	}
}

func TestCache_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	inner := &countingEmbedder{inner: NewHashEmbedder(64)}
	cache, _ := NewCache(inner, 100, path)
	want, _ := cache.Embed(ctx, "remember me")
	if err := cache.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	inner2 := &countingEmbedder{inner: NewHashEmbedder(64)}
	reloaded, _ := NewCache(inner2, 100, path)
	got, err := reloaded.Embed(ctx, "remember me")
	if err != nil {
		t.Fatalf("embed after reload: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Error("reloaded cache returned a different vector")
	}
	if inner2.calls.Load() != 0 {
		t.Errorf("expected 0 provider calls after reload, got %d", inner2.calls.Load())
	}
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	inner := &countingEmbedder{inner: NewHashEmbedder(64)}
	cache, err := NewCache(inner, 100, path)
	if err != nil {
		t.Fatalf("new cache over corrupt file: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cache.Len())
	}
}
