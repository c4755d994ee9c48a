package app

import (
	"context"
	"fmt"
	"strings"

	"careline/internal/util"
	"careline/pkg/domain"
)

// BuildContext assembles the RAG context for a child: profile, active
// concerns, recent session summaries, similarity-matched knowledge chunks,
// and the latest session roadmap.
//
// A missing or inactive child fails the whole call. Every other section
// degrades leniently: failures are logged and yield empty sections so the
// chat can still respond.
func (a *App) BuildContext(ctx context.Context, childID, sessionID, conversationID, query string) (*domain.RAGContext, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("child_id", "child_id is required")
	}
	logger := util.LoggerFromContext(ctx)

	ragCtx := a.staticContext(ctx, childID)
	if ragCtx == nil {
		fresh, err := a.assembleStaticContext(ctx, childID)
		if err != nil {
			return nil, err
		}
		ragCtx = fresh
		if a.cache != nil {
			if err := a.cache.Set(ctx, childID, ragCtx); err != nil {
				logger.Warn("context cache set failed", "child_id", childID, "error", err)
			}
		}
	}

	// Knowledge chunks depend on the query, so they are fetched per call and
	// never cached with the child-keyed portion.
	ragCtx.KnowledgeChunks = a.retrieveChunks(ctx, childID, query)
	return ragCtx, nil
}

// staticContext returns the cached child-keyed portion, or nil on miss.
// Cache errors degrade to a miss.
func (a *App) staticContext(ctx context.Context, childID string) *domain.RAGContext {
	if a.cache == nil {
		return nil
	}
	cached, ok, err := a.cache.Get(ctx, childID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("context cache get failed", "child_id", childID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return cached
}

func (a *App) assembleStaticContext(ctx context.Context, childID string) (*domain.RAGContext, error) {
	logger := util.LoggerFromContext(ctx)

	child, ok, err := a.store.GetChild(childID)
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("child %s: %w", childID, ErrNotFound)
	}
	ragCtx := &domain.RAGContext{ChildProfile: &child}

	concerns, err := a.store.ListActiveConcerns(childID)
	if err != nil {
		logger.Warn("load active concerns failed", "child_id", childID, "error", err)
	} else {
		ragCtx.ActiveConcerns = concerns
	}

	summaries, err := a.store.ListRecentSummariesByChild(childID, a.summaryLimit)
	if err != nil {
		logger.Warn("load session summaries failed", "child_id", childID, "error", err)
	} else {
		ragCtx.SessionSummaries = summaries
		if len(summaries) > 0 {
			ragCtx.LatestSessionRoadmap = strings.TrimSpace(summaries[0].NextSessionPlan)
		}
	}

	return ragCtx, nil
}

// retrieveChunks embeds the query and runs similarity search. An empty query
// falls back to embedding the child id string.
func (a *App) retrieveChunks(ctx context.Context, childID, query string) []domain.RetrievedChunk {
	logger := util.LoggerFromContext(ctx)
	searchText := strings.TrimSpace(query)
	if searchText == "" {
		searchText = childID
	}
	embedding, err := a.embedder.EmbedText(ctx, searchText)
	if err != nil {
		logger.Warn("embed query failed", "child_id", childID, "error", err)
		return nil
	}
	chunks, err := a.store.SearchKnowledgeChunks(embedding, a.topK)
	if err != nil {
		logger.Warn("knowledge search failed", "child_id", childID, "error", err)
		return nil
	}
	return chunks
}

// InvalidateContext evicts any cached context for the child. Mutation
// handlers call this so stale profile or concern data never reaches the
// prompt builder after an edit.
func (a *App) InvalidateContext(ctx context.Context, childID string) {
	if a.cache == nil || strings.TrimSpace(childID) == "" {
		return
	}
	if err := a.cache.Invalidate(ctx, childID); err != nil {
		util.LoggerFromContext(ctx).Warn("context cache invalidate failed", "child_id", childID, "error", err)
	}
}
