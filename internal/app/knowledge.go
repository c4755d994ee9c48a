package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/pkg/domain"
)

// KnowledgeInput is one piece of reference material to index.
type KnowledgeInput struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// AddKnowledgeChunk embeds reference material and upserts it into the vector
// store so it becomes retrievable by chat context assembly. Admin only.
func (a *App) AddKnowledgeChunk(ctx context.Context, user domain.User, input KnowledgeInput) (domain.KnowledgeChunk, error) {
	if user.Role != domain.RoleAdmin {
		return domain.KnowledgeChunk{}, fmt.Errorf("knowledge indexing requires admin: %w", ErrForbidden)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return domain.KnowledgeChunk{}, NewValidationError("content", "content is required")
	}

	embedding, err := a.embedder.EmbedText(ctx, content)
	if err != nil {
		return domain.KnowledgeChunk{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	chunk := domain.KnowledgeChunk{
		ID:        strings.TrimSpace(input.ID),
		Content:   content,
		Source:    strings.TrimSpace(input.Source),
		Metadata:  input.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if err := a.store.UpsertKnowledgeChunk(chunk, embedding); err != nil {
		return domain.KnowledgeChunk{}, fmt.Errorf("save knowledge chunk: %w", err)
	}
	return chunk, nil
}

// ListMemories returns a child's extracted conversation memories,
// most important first.
func (a *App) ListMemories(childID string) ([]domain.ConversationMemory, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("childId", "childId is required")
	}
	return a.store.ListMemoriesByChild(childID, 50)
}
