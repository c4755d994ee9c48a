package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"careline/pkg/domain"
)

const (
	defaultContextPrefix = "careline:ragctx:"
	defaultContextTTL    = 5 * time.Minute
)

// ContextCache caches assembled per-child RAG contexts in Redis so repeated
// chat turns do not re-query the database. Entries expire on a short TTL and
// are explicitly invalidated by profile mutations.
type ContextCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewContextCache creates a cache on an existing Redis client.
func NewContextCache(client *redis.Client, ttl time.Duration) (*ContextCache, error) {
	if client == nil {
		return nil, errors.New("context cache requires a redis client")
	}
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	return &ContextCache{client: client, prefix: defaultContextPrefix, ttl: ttl}, nil
}

// Get returns the cached context for a child, or ok=false on miss.
// Redis errors are returned so callers can decide to degrade.
func (c *ContextCache) Get(ctx context.Context, childID string) (*domain.RAGContext, bool, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, false, errors.New("child id required")
	}
	raw, err := c.client.Get(ctx, c.prefix+childID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ragCtx domain.RAGContext
	if err := json.Unmarshal(raw, &ragCtx); err != nil {
		// Corrupt entry, drop it and report a miss.
		_ = c.client.Del(ctx, c.prefix+childID).Err()
		return nil, false, nil
	}
	return &ragCtx, true, nil
}

// Set stores the assembled context for a child.
func (c *ContextCache) Set(ctx context.Context, childID string, ragCtx *domain.RAGContext) error {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return errors.New("child id required")
	}
	if ragCtx == nil {
		return errors.New("context required")
	}
	raw, err := json.Marshal(ragCtx)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+childID, raw, c.ttl).Err()
}

// Invalidate drops the cached context for a child. Called by handlers that
// mutate profile, concern, or summary data.
func (c *ContextCache) Invalidate(ctx context.Context, childID string) error {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+childID).Err()
}
