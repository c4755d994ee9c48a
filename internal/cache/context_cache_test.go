package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"careline/pkg/domain"
)

func newTestCache(t *testing.T) (*ContextCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c, err := NewContextCache(client, time.Minute)
	if err != nil {
		t.Fatalf("new context cache: %v", err)
	}
	return c, srv
}

func TestContextCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "child-1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	stored := &domain.RAGContext{
		ChildProfile:         &domain.Child{ID: "child-1", FullName: "Asha"},
		LatestSessionRoadmap: "practice breathing exercises",
	}
	if err := c.Set(ctx, "child-1", stored); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get(ctx, "child-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.ChildProfile == nil || got.ChildProfile.FullName != "Asha" {
		t.Fatalf("cached profile = %+v", got.ChildProfile)
	}
	if got.LatestSessionRoadmap != stored.LatestSessionRoadmap {
		t.Fatalf("roadmap = %q", got.LatestSessionRoadmap)
	}
}

func TestContextCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "child-1", &domain.RAGContext{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Invalidate(ctx, "child-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, err := c.Get(ctx, "child-1"); err != nil || ok {
		t.Fatalf("expected miss after invalidate, ok=%v err=%v", ok, err)
	}
}

func TestContextCacheCorruptEntryIsMiss(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	srv.Set("careline:ragctx:child-1", "{not json")
	if _, ok, err := c.Get(ctx, "child-1"); err != nil || ok {
		t.Fatalf("corrupt entry should be a miss, ok=%v err=%v", ok, err)
	}
}

func TestContextCacheExpires(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "child-1", &domain.RAGContext{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	srv.FastForward(2 * time.Minute)
	if _, ok, err := c.Get(ctx, "child-1"); err != nil || ok {
		t.Fatalf("expected miss after ttl, ok=%v err=%v", ok, err)
	}
}
