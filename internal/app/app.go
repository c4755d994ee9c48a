package app

import (
	"context"
	"fmt"

	"careline/pkg/ai"
	"careline/pkg/domain"
	"careline/pkg/store"
)

// ContextCache is the keyed RAG-context cache consumed by the assembler and
// invalidated by mutation handlers.
type ContextCache interface {
	Get(ctx context.Context, childID string) (*domain.RAGContext, bool, error)
	Set(ctx context.Context, childID string, ragCtx *domain.RAGContext) error
	Invalidate(ctx context.Context, childID string) error
}

// Config holds runtime configuration for the core application.
type Config struct {
	Store        store.Store
	Cache        ContextCache
	Chat         ai.ChatCompleter
	Embedder     ai.Embedder
	TopK         int
	HistoryLimit int
	SummaryLimit int
}

// App is the core application service wiring storage, cache, and AI clients.
type App struct {
	store        store.Store
	cache        ContextCache
	chat         ai.ChatCompleter
	embedder     ai.Embedder
	topK         int
	historyLimit int
	summaryLimit int
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat completer required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 8
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 8
	}
	summaryLimit := cfg.SummaryLimit
	if summaryLimit <= 0 {
		summaryLimit = 5
	}
	return &App{
		store:        cfg.Store,
		cache:        cfg.Cache,
		chat:         cfg.Chat,
		embedder:     cfg.Embedder,
		topK:         topK,
		historyLimit: historyLimit,
		summaryLimit: summaryLimit,
	}, nil
}
