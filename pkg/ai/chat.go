package ai

import "context"

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is the assistant reply plus provider accounting.
type ChatResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ChatCompleter generates an assistant reply from an ordered message list
// (system prompt first, then alternating history, then the new user turn).
// All LLM providers implement this interface.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage) (ChatResult, error)
}

// Embedder provides embeddings for text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
