package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"careline/pkg/domain"
)

func TestBuildContextMissingChildFails(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	_, err := a.BuildContext(context.Background(), "ghost", "", "", "query")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBuildContextInactiveChildFails(t *testing.T) {
	store := newFakeStore()
	child := activeChild("child-1", "Asha Kumar")
	child.IsActive = false
	store.children["child-1"] = child
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})

	_, err := a.BuildContext(context.Background(), "child-1", "", "", "query")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for inactive child, got %v", err)
	}
}

func TestBuildContextAssemblesAllSections(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	store.concerns["c-1"] = domain.Concern{
		ID: "c-1", ChildID: "child-1", Title: "Exam anxiety",
		Status: domain.ConcernOpen,
	}
	store.sessions["s-1"] = domain.Session{ID: "s-1", ChildID: "child-1"}
	store.summaries["s-1"] = domain.SessionSummary{
		ID: "sum-1", SessionID: "s-1", Summary: "Good session",
		NextSessionPlan: "review homework", UpdatedAt: time.Now().UTC(),
	}
	store.chunks = []domain.RetrievedChunk{
		{KnowledgeChunk: domain.KnowledgeChunk{ID: "k-1", Content: "chunk"}, Similarity: 0.9},
	}
	embedder := &fakeEmbedder{}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, embedder)

	ragCtx, err := a.BuildContext(context.Background(), "child-1", "", "", "how to help with exams")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if ragCtx.ChildProfile == nil || ragCtx.ChildProfile.ID != "child-1" {
		t.Fatalf("profile = %+v", ragCtx.ChildProfile)
	}
	if len(ragCtx.ActiveConcerns) != 1 {
		t.Fatalf("concerns = %d", len(ragCtx.ActiveConcerns))
	}
	if len(ragCtx.SessionSummaries) != 1 {
		t.Fatalf("summaries = %d", len(ragCtx.SessionSummaries))
	}
	if len(ragCtx.KnowledgeChunks) != 1 {
		t.Fatalf("chunks = %d", len(ragCtx.KnowledgeChunks))
	}
	if ragCtx.LatestSessionRoadmap != "review homework" {
		t.Fatalf("roadmap = %q", ragCtx.LatestSessionRoadmap)
	}
	if embedder.lastText != "how to help with exams" {
		t.Fatalf("embedded text = %q", embedder.lastText)
	}
}

func TestBuildContextEmptyQueryEmbedsChildID(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	embedder := &fakeEmbedder{}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, embedder)

	if _, err := a.BuildContext(context.Background(), "child-1", "", "", "  "); err != nil {
		t.Fatalf("build context: %v", err)
	}
	if embedder.lastText != "child-1" {
		t.Fatalf("embedded text = %q, want child id fallback", embedder.lastText)
	}
}

func TestBuildContextLenientDegradation(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	store.failConcerns = errors.New("db hiccup")
	store.failSummaries = errors.New("db hiccup")
	store.failSearch = errors.New("pgvector down")
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})

	ragCtx, err := a.BuildContext(context.Background(), "child-1", "", "", "q")
	if err != nil {
		t.Fatalf("partial failures must not abort, got %v", err)
	}
	if ragCtx.ChildProfile == nil {
		t.Fatal("profile missing")
	}
	if len(ragCtx.ActiveConcerns) != 0 || len(ragCtx.SessionSummaries) != 0 || len(ragCtx.KnowledgeChunks) != 0 {
		t.Fatalf("expected empty sections, got %+v", ragCtx)
	}
}

func TestBuildContextEmbedFailureYieldsNoChunks(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	store.chunks = []domain.RetrievedChunk{{KnowledgeChunk: domain.KnowledgeChunk{ID: "k-1"}}}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{err: errors.New("embed down")})

	ragCtx, err := a.BuildContext(context.Background(), "child-1", "", "", "q")
	if err != nil {
		t.Fatalf("embed failure must not abort, got %v", err)
	}
	if len(ragCtx.KnowledgeChunks) != 0 {
		t.Fatalf("chunks = %d, want 0", len(ragCtx.KnowledgeChunks))
	}
}

func TestBuildContextUsesCacheForStaticPortion(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	cache := newMemCache()
	a := newTestApp(t, store, cache, &fakeChat{}, &fakeEmbedder{})

	if _, err := a.BuildContext(context.Background(), "child-1", "", "", "q"); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := a.BuildContext(context.Background(), "child-1", "", "", "q"); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", cache.hits)
	}
}

func TestChildUpdateInvalidatesCachedContext(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Old Name")
	cache := newMemCache()
	a := newTestApp(t, store, cache, &fakeChat{}, &fakeEmbedder{})
	ctx := context.Background()

	first, err := a.BuildContext(ctx, "child-1", "", "", "q")
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.ChildProfile.FullName != "Old Name" {
		t.Fatalf("first profile = %q", first.ChildProfile.FullName)
	}

	if _, err := a.UpdateChild(ctx, adminUser(), "child-1", ChildInput{
		FullName:    "New Name",
		DateOfBirth: "2012-06-15",
		Gender:      "Male",
		State:       "Bihar",
	}); err != nil {
		t.Fatalf("update child: %v", err)
	}

	second, err := a.BuildContext(ctx, "child-1", "", "", "q")
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if second.ChildProfile.FullName != "New Name" {
		t.Fatalf("stale context served after update: %q", second.ChildProfile.FullName)
	}
}
