package app

import (
	"strings"
	"testing"
	"time"

	"careline/pkg/domain"
)

func TestBuildSystemPromptFallbackWithoutProfile(t *testing.T) {
	for _, ragCtx := range []*domain.RAGContext{nil, {}} {
		got := BuildSystemPrompt(ragCtx)
		if got != fallbackPrompt {
			t.Fatalf("expected fallback prompt, got %q", got)
		}
		if !strings.Contains(got, "context is unavailable. Respond with general guidance.") {
			t.Fatalf("fallback prompt text changed: %q", got)
		}
	}
}

func TestBuildSystemPromptPlaceholders(t *testing.T) {
	child := activeChild("child-1", "Asha Kumar")
	prompt := BuildSystemPrompt(&domain.RAGContext{ChildProfile: &child})

	for _, placeholder := range []string{
		"No active concerns.",
		"No session summaries recorded yet.",
		"No reference material matched.",
	} {
		if !strings.Contains(prompt, placeholder) {
			t.Fatalf("prompt missing placeholder %q:\n%s", placeholder, prompt)
		}
	}
	if !strings.Contains(prompt, "Asha Kumar") {
		t.Fatalf("prompt missing child name:\n%s", prompt)
	}
}

func TestBuildSystemPromptRendersSections(t *testing.T) {
	child := activeChild("child-1", "Asha Kumar")
	child.City = "Patna"
	child.Interests = []string{"cricket", "drawing"}
	ragCtx := &domain.RAGContext{
		ChildProfile: &child,
		ActiveConcerns: []domain.Concern{
			{Title: "Exam anxiety", Description: "worries before tests", Category: domain.CategoryAcademic, Severity: domain.SeverityHigh},
		},
		SessionSummaries: []domain.SessionSummary{
			{Summary: "Talked through breathing exercises.", FollowUpNotes: "check progress next week"},
		},
		KnowledgeChunks: []domain.RetrievedChunk{
			{KnowledgeChunk: domain.KnowledgeChunk{Content: "Grounding techniques reduce acute anxiety."}},
		},
		LatestSessionRoadmap: "Practice exercises before Monday's exam.",
	}
	prompt := BuildSystemPrompt(ragCtx)

	for _, want := range []string{
		"[ACADEMIC/HIGH] Exam anxiety: worries before tests",
		"Talked through breathing exercises.",
		"Grounding techniques reduce acute anxiety.",
		"Practice exercises before Monday's exam.",
		"Patna",
		"cricket, drawing",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "No active concerns.") {
		t.Fatalf("placeholder rendered despite concerns present:\n%s", prompt)
	}
}

func TestBuildSystemPromptDeterministic(t *testing.T) {
	child := activeChild("child-1", "Asha Kumar")
	ragCtx := &domain.RAGContext{
		ChildProfile: &child,
		ActiveConcerns: []domain.Concern{
			{Title: "A", Category: domain.CategoryFamily, Severity: domain.SeverityLow},
			{Title: "B", Category: domain.CategorySocial, Severity: domain.SeverityMedium},
		},
	}
	first := BuildSystemPrompt(ragCtx)
	second := BuildSystemPrompt(ragCtx)
	if first != second {
		t.Fatal("prompt builder is not deterministic")
	}
}

func TestChildAge(t *testing.T) {
	child := domain.Child{DateOfBirth: time.Date(2012, 6, 15, 0, 0, 0, 0, time.UTC)}
	beforeBirthday := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	onBirthday := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := child.Age(beforeBirthday); got != 13 {
		t.Fatalf("age before birthday = %d", got)
	}
	if got := child.Age(onBirthday); got != 14 {
		t.Fatalf("age on birthday = %d", got)
	}
}
