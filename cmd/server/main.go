package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"commentgen/internal/config"
	"commentgen/internal/database"
	"commentgen/internal/handlers"
	"commentgen/internal/logger"
	"commentgen/internal/middleware"
	"commentgen/internal/models"
	"commentgen/internal/prompt"
	"commentgen/internal/repository"
	"commentgen/internal/router"
	"commentgen/internal/services"
	"commentgen/internal/websocket"
)

type auditStore interface {
	Record(ctx context.Context, rec *models.GenerationRecord) error
	ListRecent(ctx context.Context, limit int) ([]*models.GenerationRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.LoadEnv()
	logger.Init(cfg.LogLevel, cfg.Env)
	log.Info().Msg("🚀 Starting Code Comment Generator...")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("✗ Configuration invalid")
	}
	log.Info().Msg("✓ Environment variables loaded")

	// ──── Step 2: Load Prompt Presets ────
	presets, err := prompt.LoadPresets(cfg.PromptPresetsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Prompt presets invalid")
	}
	builder := prompt.NewBuilder(presets)
	log.Info().Int("presets", len(presets)).Msg("✓ Prompt builder ready")

	// ──── Step 3: Open Audit Log ────
	var audit auditStore
	driver, dsn, err := database.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ DATABASE_URL invalid")
	}
	switch driver {
	case database.DriverPostgres:
		pool, err := database.NewPostgresPool(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ PostgreSQL connection failed")
		}
		defer pool.Close()
		if err := database.RunMigrations(pool); err != nil {
			log.Fatal().Err(err).Msg("✗ Database migration failed")
		}
		audit = repository.NewGenerationRepo(pool)
		log.Info().Msg("✓ PostgreSQL audit log ready")
	case database.DriverSQLite:
		db, err := database.NewSQLiteDB(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ SQLite open failed")
		}
		defer db.Close()
		if err := database.RunSQLiteMigrations(db); err != nil {
			log.Fatal().Err(err).Msg("✗ Database migration failed")
		}
		audit = repository.NewSQLiteGenerationRepo(db)
		log.Info().Str("path", dsn).Msg("✓ SQLite audit log ready")
	default:
		log.Info().Msg("- Audit log disabled (DATABASE_URL not set)")
	}

	var retention *services.RetentionScheduler
	if audit != nil {
		retention = services.NewRetentionScheduler(audit, cfg.AuditRetention)
		retention.Start()
	}

	// ──── Step 4: Initialize Redis Clients ────
	var pubsubClient *redis.Client
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ Redis connection failed")
		}
		defer redisClients.Close()
		pubsubClient = redisClients.PubSub
		limiter = middleware.NewRedisLimiter(redisClients.Commands, cfg.RateLimitPerMinute)
		log.Info().Msg("✓ Redis connected")
	} else {
		memLimiter := middleware.NewMemoryLimiter(cfg.RateLimitPerMinute)
		defer memLimiter.Close()
		limiter = memLimiter
		log.Info().Msg("- Redis not configured, using in-memory rate limiter")
	}

	// ──── Step 5: Start WebSocket Hub ────
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth = middleware.NewJWTAuth(cfg.JWTSecret)
		log.Info().Msg("✓ API token auth enabled")
	}
	wsHub := websocket.NewHub(pubsubClient, jwtAuth)
	defer wsHub.Close()
	log.Info().Msg("✓ WebSocket hub started")

	// ──── Step 6: Initialize Gemini Client ────
	var recorder services.GenerationRecorder = audit
	geminiService, err := services.NewGeminiService(services.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		Timeout:         cfg.GeminiTimeout,
		Endpoint:        cfg.GeminiEndpoint,
	}, builder, recorder, wsHub)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Gemini client initialization failed")
	}
	defer geminiService.Close()
	log.Info().Str("model", cfg.GeminiModel).Msg("✓ Gemini client initialized")

	// ──── Step 7: Initialize Handlers ────
	uiHandler := handlers.NewUIHandler(geminiService, builder, cfg.GeminiModel, cfg.MaxRequestBytes)
	if jwtAuth != nil {
		uiHandler.WithProgressTokens(jwtAuth)
	}
	r := router.New(router.Options{
		JWTAuth:           jwtAuth,
		Limiter:           limiter,
		CommentHandler:    handlers.NewCommentHandler(geminiService, builder, cfg.MaxRequestBytes),
		GenerationHandler: handlers.NewGenerationHandler(audit),
		UIHandler:         uiHandler,
		Hub:               wsHub,
		FrontendURL:       cfg.FrontendURL,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	// ──── Step 8: Start HTTP Server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GeminiTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		if retention != nil {
			retention.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
		close(idle)
	}()

	log.Info().Msgf("✓ Code Comment Generator ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
	<-idle
}
