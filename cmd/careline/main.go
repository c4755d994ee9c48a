package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"careline/internal/app"
	"careline/internal/cache"
	"careline/internal/config"
	"careline/internal/ratelimit"
	"careline/internal/server"
	"careline/internal/usertoken"
	"careline/internal/util"
	"careline/pkg/ai"
	"careline/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.JWKSURL,
		Issuer:     cfg.TokenIssuer,
		Audience:   cfg.TokenAudience,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		util.Fatal("failed to init jwks verifier", "err", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	contextCache, err := cache.NewContextCache(redisClient, time.Duration(cfg.ContextCacheTTLSecs)*time.Second)
	if err != nil {
		util.Fatal("failed to init context cache", "err", err)
	}
	chatLimiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "careline:chat", cfg.ChatRequestsPerMinute, time.Minute)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}

	llmClient := ai.NewOpenAICompatClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ChatModel, cfg.EmbeddingModel)

	appCore, err := app.New(app.Config{
		Store:        dataStore,
		Cache:        contextCache,
		Chat:         llmClient,
		Embedder:     llmClient,
		TopK:         cfg.TopK,
		HistoryLimit: cfg.HistoryLimit,
		SummaryLimit: cfg.SummaryLimit,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		ChatLimiter:    chatLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("careline server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
