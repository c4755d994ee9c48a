package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/internal/util"
	"careline/pkg/ai"
	"careline/pkg/domain"
)

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Message        string
	ChildID        string
	SessionID      string
	ConversationID string
}

// ChatResponse is the assistant reply plus the context used to produce it.
type ChatResponse struct {
	Response       string                  `json:"response"`
	ConversationID string                  `json:"conversationId"`
	Metadata       *domain.MessageMetadata `json:"metadata"`
	RAGContext     *domain.RAGContext      `json:"ragContext"`
}

// Chat handles one inbound chat message end to end:
// resolve the conversation, build context, persist the user message, call
// the LLM, persist the assistant reply, and extract memory best-effort.
func (a *App) Chat(ctx context.Context, user domain.User, req ChatRequest) (ChatResponse, error) {
	logger := util.LoggerFromContext(ctx)

	message := strings.TrimSpace(req.Message)
	childID := strings.TrimSpace(req.ChildID)
	fields := map[string]string{}
	if message == "" {
		fields["message"] = "message is required"
	}
	if childID == "" {
		fields["child_id"] = "child_id is required"
	}
	if len(fields) > 0 {
		return ChatResponse{}, &ValidationError{Fields: fields}
	}

	conversation, history, err := a.resolveConversation(ctx, user, childID, req.SessionID, req.ConversationID)
	if err != nil {
		return ChatResponse{}, err
	}

	// Context failures are downgraded: the chat still answers with the
	// fallback prompt rather than aborting.
	ragCtx, err := a.BuildContext(ctx, childID, req.SessionID, conversation.ID, message)
	if err != nil {
		logger.Warn("context build failed, proceeding without context",
			"child_id", childID, "conversation_id", conversation.ID, "error", err)
		ragCtx = nil
	}
	systemPrompt := BuildSystemPrompt(ragCtx)

	now := time.Now().UTC()
	userMessage := domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleUser,
		Content:        message,
		CreatedAt:      now,
	}
	if err := a.store.AppendMessage(userMessage); err != nil {
		return ChatResponse{}, fmt.Errorf("save user message: %w", err)
	}

	llmMessages := make([]ai.ChatMessage, 0, len(history)+2)
	llmMessages = append(llmMessages, ai.ChatMessage{Role: "system", Content: systemPrompt})
	for _, h := range history {
		llmMessages = append(llmMessages, ai.ChatMessage{
			Role:    strings.ToLower(string(h.Role)),
			Content: h.Content,
		})
	}
	llmMessages = append(llmMessages, ai.ChatMessage{Role: "user", Content: message})

	start := time.Now()
	result, err := a.chat.Complete(ctx, llmMessages)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	latency := time.Since(start)

	metadata := &domain.MessageMetadata{
		Model:            result.Model,
		LatencyMillis:    latency.Milliseconds(),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		Sources:          chunkSources(ragCtx),
	}
	assistantMessage := domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        result.Content,
		RAGContext:     ragCtx,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	// An unpersisted answer must not be returned silently; losing the answer
	// is the accepted outcome.
	if err := a.store.AppendMessage(assistantMessage); err != nil {
		return ChatResponse{}, fmt.Errorf("save assistant message: %w", err)
	}
	if err := a.store.TouchConversation(conversation.ID, assistantMessage.CreatedAt); err != nil {
		logger.Warn("touch conversation failed", "conversation_id", conversation.ID, "error", err)
	}

	a.extractMemory(ctx, conversation, message, result.Content)

	return ChatResponse{
		Response:       result.Content,
		ConversationID: conversation.ID,
		Metadata:       metadata,
		RAGContext:     ragCtx,
	}, nil
}

// resolveConversation reuses an existing conversation (loading its recent
// history) or creates a fresh one. Unknown conversation ids behave like
// absent ones.
func (a *App) resolveConversation(ctx context.Context, user domain.User, childID, sessionID, conversationID string) (domain.Conversation, []domain.ChatMessage, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID != "" {
		conversation, ok, err := a.store.GetConversation(conversationID)
		if err != nil {
			return domain.Conversation{}, nil, fmt.Errorf("load conversation: %w", err)
		}
		if ok {
			history, err := a.store.ListRecentMessages(conversation.ID, a.historyLimit)
			if err != nil {
				util.LoggerFromContext(ctx).Warn("load history failed",
					"conversation_id", conversation.ID, "error", err)
				history = nil
			}
			return conversation, history, nil
		}
	}

	now := time.Now().UTC()
	var sessionRef *string
	if s := strings.TrimSpace(sessionID); s != "" {
		sessionRef = &s
	}
	conversation := domain.Conversation{
		ID:          uuid.NewString(),
		ChildID:     childID,
		VolunteerID: user.ID,
		SessionID:   sessionRef,
		Name:        "New conversation",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateConversation(conversation); err != nil {
		return domain.Conversation{}, nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil, nil
}

func chunkSources(ragCtx *domain.RAGContext) []string {
	if ragCtx == nil || len(ragCtx.KnowledgeChunks) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ragCtx.KnowledgeChunks))
	sources := make([]string, 0, len(ragCtx.KnowledgeChunks))
	for _, chunk := range ragCtx.KnowledgeChunks {
		source := strings.TrimSpace(chunk.Source)
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}

// ListConversations returns a child's conversations for the sidebar.
func (a *App) ListConversations(childID string) ([]domain.Conversation, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("childId", "childId is required")
	}
	return a.store.ListConversationsByChild(childID, 0)
}

// ListConversationMessages returns a conversation's messages in
// chronological order.
func (a *App) ListConversationMessages(conversationID string) ([]domain.ChatMessage, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, NewValidationError("conversationId", "conversationId is required")
	}
	if _, ok, err := a.store.GetConversation(conversationID); err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return a.store.ListRecentMessages(conversationID, 500)
}
