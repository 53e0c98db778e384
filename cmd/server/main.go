// Package main provides the API server entry point for the verse transcription service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/verse-scribe/internal/api"
	"github.com/verse-scribe/internal/auth"
	"github.com/verse-scribe/internal/catalog"
	"github.com/verse-scribe/internal/circuitbreaker"
	"github.com/verse-scribe/internal/config"
	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/observe"
	"github.com/verse-scribe/internal/ratelimit"
	"github.com/verse-scribe/internal/service"
	"github.com/verse-scribe/internal/storage"
	"github.com/verse-scribe/internal/transcription"
)

// limiterIdle is how long an idle client's request limiter is kept
const limiterIdle = 10 * time.Minute

func main() {
	fmt.Println("Verse Scribe API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	defaultLocation, err := time.LoadLocation(cfg.Bible.DefaultTimezone)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load default timezone")
	}

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	// The activity feed is optional
	var events service.EventStore
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		events = storage.NewEventRepository(clickhouse)
	}

	logger.Info("Database connections established")

	// Metrics
	var (
		metrics         *observe.Metrics
		metricsHandler  http.Handler
		metricsShutdown func(context.Context) error
	)
	if cfg.Metrics.Enabled {
		handler, shutdown, err := observe.InitProvider(nil)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize metrics provider")
		}
		metricsHandler, metricsShutdown = handler, shutdown
		metrics, err = observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			logger.WithError(err).Fatal("Failed to create metrics")
		}
	}

	// Initialize repositories
	profileRepo := storage.NewProfileRepository(postgres)
	creditRepo := storage.NewCreditRepository(postgres)
	progressRepo := storage.NewProgressRepository(postgres)
	verseRepo := storage.NewVerseRepository(postgres)

	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL, cfg.Cache.ChapterTTL)

	breakerCfg := circuitbreaker.DefaultConfig("verse_source")
	breakerCfg.IsFailure = func(err error) bool {
		return !apperrors.IsUserError(err)
	}
	verseSource := storage.NewVerseSource(verseRepo, cacheService, circuitbreaker.NewCircuitBreaker(breakerCfg))

	capper, err := ratelimit.NewDailyCapTracker(&ratelimit.DailyCapConfig{
		Redis: redis.Client(),
		Limit: cfg.Credits.DailyLimit,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create daily cap tracker")
	}

	topics, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load topic catalog")
	}

	// Initialize services
	logger.Info("Initializing services...")

	rules := credit.Rules{PerVerse: cfg.Credits.PerVerse, DailyLimit: cfg.Credits.DailyLimit}
	translations := service.Translations{Default: cfg.Bible.DefaultTranslation, Enabled: cfg.Bible.Translations}

	profileService := service.NewProfileService(profileRepo, cacheService)
	statsService := service.NewStatsService(creditRepo, progressRepo, events, cacheService, rules)
	transcriptionService := service.NewTranscriptionService(progressRepo, creditRepo, rules, service.TranscriptionDeps{
		Capper:  capper,
		Events:  events,
		Cache:   cacheService,
		Metrics: metrics,
	})
	readerService := service.NewReaderService(verseSource, verseRepo, statsService, translations)

	registry := transcription.NewRegistry(cfg.Session.IdleTimeout, func(*transcription.Session) {
		metrics.SessionEnded(context.Background())
	})
	if err := registry.Start(cfg.Session.ReapInterval); err != nil {
		logger.WithError(err).Fatal("Failed to start session reaper")
	}

	sessionService := service.NewSessionService(
		registry,
		verseSource,
		verseRepo,
		topics,
		statsService,
		transcriptionService,
		metrics,
		service.SessionConfig{
			Rules:           rules,
			Delay:           cfg.Credits.AdvanceDelay,
			DefaultLocation: defaultLocation,
			Translations:    translations,
		},
	)

	logger.Info("Services initialized")

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	} else {
		logger.Warn("AUTH_JWT_SECRET is empty; accepting the X-User-ID header only")
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		AuthRequired:      cfg.Auth.Required,
		DefaultLocation:   defaultLocation,
	}

	opts := []api.Option{
		api.WithHealthCheck("postgres", postgres.Ping),
		api.WithHealthCheck("redis", redis.Ping),
		api.WithHealthCheck("verse_source", verseSource.Ping),
	}
	if clickhouse != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", clickhouse.Ping))
	}
	if metricsHandler != nil {
		opts = append(opts, api.WithMetrics(metrics, metricsHandler))
	}

	server := api.NewServer(serverConfig, api.Services{
		Profiles:       profileService,
		Stats:          statsService,
		Transcriptions: transcriptionService,
		Sessions:       sessionService,
		Reader:         readerService,
		Topics:         topics,
	}, verifier, opts...)

	// Drop request limiters of clients that went quiet
	err = registry.Every("prune-request-limiters", limiterIdle, func() {
		if n := server.RateLimiter().Prune(limiterIdle); n > 0 {
			logger.WithField("pruned", n).Debug("Pruned idle request limiters")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to schedule limiter pruning")
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"topics":     len(topics.IDs()),
		"clickhouse": cfg.Database.ClickHouse.Enabled,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := registry.Shutdown(); err != nil {
		logger.WithError(err).Warn("Session reaper shutdown failed")
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(ctx); err != nil {
			logger.WithError(err).Warn("Metrics provider shutdown failed")
		}
	}

	logger.Info("Server exited")
}
