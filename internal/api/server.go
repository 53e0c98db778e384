// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/verse-scribe/internal/auth"
	"github.com/verse-scribe/internal/catalog"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/observe"
	"github.com/verse-scribe/internal/service"
	"github.com/verse-scribe/internal/transcription"
	"github.com/verse-scribe/internal/types"
)

// Service interfaces for dependency injection and testing

// ProfileServiceInterface defines the interface for profile operations
type ProfileServiceInterface interface {
	ProfileResolver
	Get(ctx context.Context, userID string) (*models.ProfileSummary, error)
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.ProfileSummary, error)
}

// StatsServiceInterface defines the interface for ledger reads
type StatsServiceInterface interface {
	Daily(ctx context.Context, userID, date string) (*service.DailyStats, error)
	Month(ctx context.Context, userID, yearMonth string) (*service.MonthStats, error)
	Dashboard(ctx context.Context, userID, date string) (*service.Dashboard, error)
	CompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error)
	Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error)
}

// SessionServiceInterface defines the interface for server-held sessions
type SessionServiceInterface interface {
	Start(ctx context.Context, in service.StartInput) (*service.StartResult, error)
	Get(userID, id string) (transcription.Snapshot, error)
	Input(userID, id, text string) (transcription.Snapshot, error)
	Advance(ctx context.Context, userID, id string) (transcription.Snapshot, error)
	Delete(userID, id string) error
}

// ReaderServiceInterface defines the interface for reading and search
type ReaderServiceInterface interface {
	Chapter(ctx context.Context, userID, translation, book string, chapter int) (*service.ReaderChapter, error)
	Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Services bundles the handlers' collaborators
type Services struct {
	Profiles       ProfileServiceInterface
	Stats          StatsServiceInterface
	Transcriptions transcription.Recorder
	Sessions       SessionServiceInterface
	Reader         ReaderServiceInterface
	Topics         *catalog.Catalog
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	services       Services
	verifier       *auth.Verifier
	metrics        *observe.Metrics
	metricsHandler http.Handler
	healthChecks   map[string]HealthCheck
	rateLimiter    *RateLimiter
	config         *ServerConfig
	now            func() time.Time
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64
	Burst             int
	AuthRequired      bool
	DefaultLocation   *time.Location // Used when the client sends no timezone
}

// Option configures optional server collaborators
type Option func(*Server)

// WithMetrics records request metrics and serves metricsHandler on /metrics
func WithMetrics(m *observe.Metrics, metricsHandler http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsHandler = metricsHandler
	}
}

// WithHealthCheck adds a dependency probe to /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services, verifier *auth.Verifier, opts ...Option) *Server {
	if config.DefaultLocation == nil {
		config.DefaultLocation = time.Local
	}
	s := &Server{
		router:       mux.NewRouter(),
		services:     services,
		verifier:     verifier,
		healthChecks: make(map[string]HealthCheck),
		rateLimiter:  NewRateLimiter(config.RequestsPerSecond, config.Burst),
		config:       config,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	if s.metrics != nil {
		s.router.Use(MetricsMiddleware(s.metrics))
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(CompressionMiddleware)

	// Public endpoints, limited per remote address
	public := api.NewRoute().Subrouter()
	public.Use(RateLimitMiddleware(s.rateLimiter))
	public.HandleFunc("/topics", s.handleListTopics).Methods(http.MethodGet)
	public.HandleFunc("/bible/search", s.handleSearch).Methods(http.MethodGet)

	// Authenticated endpoints, limited per profile
	private := api.NewRoute().Subrouter()
	private.Use(AuthMiddleware(s.verifier, s.services.Profiles, s.config.AuthRequired))
	private.Use(RateLimitMiddleware(s.rateLimiter))

	private.HandleFunc("/me/profile", s.handleGetProfile).Methods(http.MethodGet)
	private.HandleFunc("/me/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	private.HandleFunc("/me/stats", s.handleStats).Methods(http.MethodGet)
	private.HandleFunc("/me/dashboard", s.handleDashboard).Methods(http.MethodGet)
	private.HandleFunc("/me/completed-verses", s.handleCompletedVerses).Methods(http.MethodGet)
	private.HandleFunc("/me/activity", s.handleActivity).Methods(http.MethodGet)

	private.HandleFunc("/reader/{book}/{chapter:[0-9]+}", s.handleReaderChapter).Methods(http.MethodGet)

	private.HandleFunc("/transcriptions", s.handleRecordTranscription).Methods(http.MethodPost)

	private.HandleFunc("/sessions", s.handleStartSession).Methods(http.MethodPost)
	private.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	private.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	private.HandleFunc("/sessions/{id}/input", s.handleSessionInput).Methods(http.MethodPost)
	private.HandleFunc("/sessions/{id}/advance", s.handleSessionAdvance).Methods(http.MethodPost)
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// RateLimiter returns the server's request limiter
func (s *Server) RateLimiter() *RateLimiter {
	return s.rateLimiter
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
