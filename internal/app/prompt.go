package app

import (
	"fmt"
	"strings"
	"time"

	"careline/pkg/domain"
)

const fallbackPrompt = "You are a supportive counseling assistant for volunteers " +
	"working with children. The child's context is unavailable. Respond with " +
	"general guidance."

const (
	noConcernsPlaceholder  = "No active concerns."
	noSummariesPlaceholder = "No session summaries recorded yet."
	noChunksPlaceholder    = "No reference material matched."
)

// BuildSystemPrompt serializes a RAG context into the system prompt for the
// LLM. It is deterministic: the same context always produces the same string,
// and absent sections render fixed placeholder sentences instead of being
// omitted. A missing child profile yields a fixed fallback prompt.
func BuildSystemPrompt(ragCtx *domain.RAGContext) string {
	if ragCtx == nil || ragCtx.ChildProfile == nil {
		return fallbackPrompt
	}
	child := ragCtx.ChildProfile

	var b strings.Builder
	b.WriteString("You are a supportive counseling assistant helping a volunteer ")
	b.WriteString(fmt.Sprintf("who works with %s, a %d-year-old %s child",
		child.FullName, child.Age(time.Now()), strings.ToLower(string(child.Gender))))
	if loc := formatLocation(child); loc != "" {
		b.WriteString(" from " + loc)
	}
	b.WriteString(".")
	if child.Background != "" {
		b.WriteString(" Background: " + child.Background)
		if !strings.HasSuffix(child.Background, ".") {
			b.WriteString(".")
		}
	}
	if len(child.Interests) > 0 {
		b.WriteString(" Interests: " + strings.Join(child.Interests, ", ") + ".")
	}
	if child.Language != "" {
		b.WriteString(" Preferred language: " + child.Language + ".")
	}
	b.WriteString("\n\n")

	b.WriteString("## Active Concerns\n")
	b.WriteString(formatConcernsSection(ragCtx.ActiveConcerns))
	b.WriteString("\n\n## Recent Session Summaries\n")
	b.WriteString(formatSummariesSection(ragCtx.SessionSummaries))
	b.WriteString("\n\n## Reference Material\n")
	b.WriteString(formatChunksSection(ragCtx.KnowledgeChunks))
	if ragCtx.LatestSessionRoadmap != "" {
		b.WriteString("\n\n## Next Session Plan\n")
		b.WriteString(ragCtx.LatestSessionRoadmap)
	}
	b.WriteString("\n\nGround your guidance in the context above. Be concrete, ")
	b.WriteString("kind, and practical; flag anything that needs escalation to a professional.")
	return b.String()
}

func formatLocation(child *domain.Child) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{child.City, child.District, child.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatConcernsSection(concerns []domain.Concern) string {
	if len(concerns) == 0 {
		return noConcernsPlaceholder
	}
	lines := make([]string, 0, len(concerns))
	for _, c := range concerns {
		line := fmt.Sprintf("- [%s/%s] %s", c.Category, c.Severity, c.Title)
		if c.Description != "" {
			line += ": " + c.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatSummariesSection(summaries []domain.SessionSummary) string {
	if len(summaries) == 0 {
		return noSummariesPlaceholder
	}
	lines := make([]string, 0, len(summaries))
	for i, s := range summaries {
		line := fmt.Sprintf("%d. %s", i+1, s.Summary)
		if s.FollowUpNotes != "" {
			line += " Follow-up: " + s.FollowUpNotes
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatChunksSection(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return noChunksPlaceholder
	}
	lines := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, chunk.Content))
	}
	return strings.Join(lines, "\n")
}
