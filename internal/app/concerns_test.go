package app

import (
	"context"
	"testing"
	"time"

	"careline/pkg/domain"
)

func strPtr(s string) *string { return &s }

func TestCreateConcernValidation(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	_, err := a.CreateConcern(context.Background(), volunteerUser(), ConcernInput{
		ChildID:  "child-1",
		Title:    "t",
		Category: "NOT_A_CATEGORY",
		Severity: "HIGH",
	})
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, found := ve.Fields["category"]; !found {
		t.Fatalf("fields = %+v", ve.Fields)
	}
}

func TestCreateConcernNormalizesAndInvalidates(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	cache := newMemCache()
	a := newTestApp(t, store, cache, &fakeChat{}, &fakeEmbedder{})
	ctx := context.Background()

	if _, err := a.BuildContext(ctx, "child-1", "", "", "q"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	concern, err := a.CreateConcern(ctx, volunteerUser(), ConcernInput{
		ChildID:  "child-1",
		Title:    "Exam anxiety",
		Category: "academic",
		Severity: "high",
	})
	if err != nil {
		t.Fatalf("create concern: %v", err)
	}
	if concern.Category != domain.CategoryAcademic || concern.Severity != domain.SeverityHigh {
		t.Fatalf("concern = %+v", concern)
	}
	if concern.Status != domain.ConcernOpen {
		t.Fatalf("status = %s", concern.Status)
	}
	if len(cache.entries) != 0 {
		t.Fatal("concern create must evict child context")
	}
}

func TestResolveConcernSetsResolvedAtAndLeavesActiveQueries(t *testing.T) {
	store := newFakeStore()
	store.children["child-1"] = activeChild("child-1", "Asha Kumar")
	store.concerns["c-1"] = domain.Concern{
		ID: "c-1", ChildID: "child-1", Title: "Exam anxiety",
		Category: domain.CategoryAcademic, Severity: domain.SeverityHigh,
		Status: domain.ConcernOpen, IdentifiedAt: time.Now().UTC(),
	}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})

	resolved, err := a.UpdateConcern(context.Background(), volunteerUser(), "c-1", ConcernUpdate{
		Status: strPtr("RESOLVED"),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.ConcernResolved {
		t.Fatalf("status = %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("resolvedAt not set")
	}

	active, err := store.ListActiveConcerns("child-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("resolved concern still active: %+v", active)
	}
}

func TestResolvedConcernCannotReopen(t *testing.T) {
	store := newFakeStore()
	resolvedAt := time.Now().UTC()
	store.concerns["c-1"] = domain.Concern{
		ID: "c-1", ChildID: "child-1", Title: "Old concern",
		Category: domain.CategoryFamily, Severity: domain.SeverityLow,
		Status: domain.ConcernResolved, ResolvedAt: &resolvedAt,
	}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})

	_, err := a.UpdateConcern(context.Background(), volunteerUser(), "c-1", ConcernUpdate{
		Status: strPtr("OPEN"),
	})
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, found := ve.Fields["status"]; !found {
		t.Fatalf("fields = %+v", ve.Fields)
	}
}

func TestListConcernsStatusFilter(t *testing.T) {
	store := newFakeStore()
	store.concerns["c-1"] = domain.Concern{ID: "c-1", ChildID: "child-1", Status: domain.ConcernOpen}
	store.concerns["c-2"] = domain.Concern{ID: "c-2", ChildID: "child-1", Status: domain.ConcernResolved}
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})

	open, err := a.ListConcerns("child-1", "open")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != "c-1" {
		t.Fatalf("open = %+v", open)
	}
	if _, err := a.ListConcerns("child-1", "BOGUS"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}
