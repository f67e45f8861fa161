package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tagsapp/catalog-scraper/internal/adapters"
	"github.com/tagsapp/catalog-scraper/internal/api"
	"github.com/tagsapp/catalog-scraper/internal/catalog"
	"github.com/tagsapp/catalog-scraper/internal/config"
	"github.com/tagsapp/catalog-scraper/internal/enrich"
	"github.com/tagsapp/catalog-scraper/internal/fetch"
	"github.com/tagsapp/catalog-scraper/internal/firecrawl"
	"github.com/tagsapp/catalog-scraper/internal/jobs"
	"github.com/tagsapp/catalog-scraper/internal/ratelimit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := catalog.NewDB(ctx, catalog.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Dedup cache is optional; without Redis every duplicate check hits
	// the database.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
	}

	cache := catalog.NewCache(redisClient, logger)
	store := catalog.NewStore(db, cache, logger)

	fetcher := fetch.New(&fetch.Options{
		UserAgent:  cfg.Scraper.UserAgent,
		Timeout:    cfg.Scraper.RequestTimeout,
		MaxRetries: cfg.Scraper.MaxRetries,
	}, logger)

	// The structured-extraction paths only light up when an API key is set.
	structured := adapters.NewStructuredAdapter(nil, nil, logger)
	enricher := enrich.New(fetcher, nil, logger)
	if cfg.Firecrawl.APIKey != "" {
		extractor := firecrawl.New(cfg.Firecrawl.BaseURL, cfg.Firecrawl.APIKey, logger)
		structured = adapters.NewStructuredAdapter(extractor, nil, logger)
		enricher = enrich.New(fetcher, extractor, logger)
	}

	registry := adapters.NewRegistry(logger,
		adapters.NewShopifyAdapter(fetcher, nil, logger),
		structured,
		adapters.NewGenericAdapter(fetcher, logger),
	)
	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	jobRegistry := jobs.NewRegistry(logger)
	runner := jobs.NewRunner(jobRegistry, store, enricher, store, limiter, store, logger)
	orchestrator := jobs.NewOrchestrator(jobRegistry, runner, registry,
		cfg.Scraper.Collections, cfg.Scraper.CollectionTarget, cfg.Scraper.PollInterval, logger)

	handlers := api.NewHandlers(registry, enricher, store, jobRegistry, runner, orchestrator,
		cfg.Cron.Secret, cfg.Scraper.DefaultMaxItems, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port,
		"collections", len(cfg.Scraper.Collections))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
