package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/chatcenter/internal/cache"
	"github.com/af-corp/chatcenter/internal/chatapi"
	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/engine"
	"github.com/af-corp/chatcenter/internal/history"
	"github.com/af-corp/chatcenter/internal/ratelimit"
	"github.com/af-corp/chatcenter/internal/telemetry"
	"github.com/af-corp/chatcenter/internal/upstream"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL; fall back to in-memory history when unreachable
	var store history.Store
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err == nil {
		if pingErr := dbPool.Ping(context.Background()); pingErr != nil {
			logger.Warn("database not reachable, using in-memory history", "error", pingErr)
			dbPool.Close()
			dbPool = nil
		}
	} else {
		logger.Warn("database pool setup failed, using in-memory history", "error", err)
		dbPool = nil
	}

	// Connect to Redis
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (summary cache and rate limiting disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	if dbPool != nil {
		defer dbPool.Close()
		store = history.NewPostgresStore(dbPool, rdb)
		logger.Info("database connected")
	} else {
		store = history.NewMemoryStore()
	}

	metrics := telemetry.NewMetrics()

	// Core pipeline
	responseCache := cache.New(cfg.Cache.TTL)
	defer responseCache.Close()

	client := upstream.NewClient(cfg.Upstream)
	contextLoader := history.NewContextLoader(store, cfg.Context)
	coordinator := engine.NewCoordinator(client, contextLoader, responseCache,
		cfg.Cache.TTL, cfg.Upstream.SearchTopK, metrics)
	assembler := engine.NewAssembler(cfg.Prompt)
	generator := engine.NewGenerator(client, loader.Models, metrics)

	worker := engine.NewWorker(store, client, loader.Models, client, cfg.Background, metrics)
	worker.Start()

	eng := engine.New(coordinator, assembler, generator, worker, metrics)
	handler := chatapi.NewHandler(eng, store, loader.Models)

	limiter := ratelimit.NewLimiter(rdb)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/v1/health", healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, func() config.RateLimitConfig {
			return loader.Config().RateLimit
		}, metrics))
		r.Post("/v1/chat", handler.Chat)
		r.Get("/v1/sessions/{sessionID}/history", handler.SessionHistory)
		r.Get("/v1/models", handler.ListModels)
	})

	// Metrics endpoint on its own port
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("metrics server starting", "port", cfg.Telemetry.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat center starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	metricsSrv.Shutdown(ctx)

	// Let queued background work finish before the process exits.
	worker.Stop(ctx)
	logger.Info("chat center stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
