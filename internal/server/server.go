// Package server exposes the cover letter pipeline and the job, letter and
// profile resources over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cover-letter-studio/internal/config"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
	"github.com/jonathan/cover-letter-studio/internal/logger"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/server/middleware"
	"github.com/jonathan/cover-letter-studio/internal/server/ratelimit"
)

const (
	shutdownTimeout = 30 * time.Second

	// Orchestrators of owners idle this long are dropped from the registry.
	orchestratorIdleTTL = 30 * time.Minute
	evictInterval       = 5 * time.Minute
)

// Config holds server configuration
type Config struct {
	Port           int
	Deadline       time.Duration
	AllowedOrigins []string
	JWT            *config.JWTConfig
	Password       *config.PasswordConfig
	RateLimit      *ratelimit.Config
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server is built from. Repository, Users,
// and Logger are required.
type Deps struct {
	Repository gateway.Repository
	Users      DBClient
	Importer   *ingestion.Importer
	// Redis, when set, carries progress between server instances.
	Redis    *progress.RedisPublisher
	Database Pinger
	Logger   *logger.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	log         *logger.Logger
	repo        gateway.Repository
	registry    *generation.Registry
	bus         *progress.Bus
	redis       *progress.RedisPublisher
	database    Pinger
	importer    *ingestion.Importer
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler
}

// New wires a server from cfg and deps.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Repository == nil || deps.Users == nil {
		return nil, errors.New("server needs a repository and a user store")
	}
	if cfg.JWT == nil || cfg.Password == nil {
		return nil, errors.New("server needs JWT and password configuration")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = generation.DefaultDeadline
	}

	s := &Server{
		log:         log.With("component", "server"),
		repo:        deps.Repository,
		bus:         progress.NewBus(log),
		redis:       deps.Redis,
		database:    deps.Database,
		importer:    deps.Importer,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		jwtService:  NewJWTService(cfg.JWT),
	}
	s.authHandler = NewAuthHandler(NewUserService(deps.Users, cfg.Password), s.jwtService)

	// With Redis, trackers publish there and Start forwards the channel into
	// the local bus, so every instance sees every owner's progress.
	var publisher progress.Publisher = s.bus
	if s.redis != nil {
		publisher = s.redis
	}
	s.registry = generation.NewRegistry(func(owner string) *generation.Orchestrator {
		tracker := progress.NewTracker(owner, log, publisher)
		return generation.New(s.repo, tracker, generation.Options{Deadline: cfg.Deadline, Logger: log})
	})

	protect := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.Handle("PUT /auth/password", protect(http.HandlerFunc(s.authHandler.UpdatePassword)))

	mux.Handle("POST /letters/generate", protect(http.HandlerFunc(s.handleGenerate)))
	mux.Handle("POST /letters/generate/stream", protect(http.HandlerFunc(s.handleGenerateStream)))
	mux.Handle("POST /letters/cancel", protect(http.HandlerFunc(s.handleCancel)))
	mux.Handle("GET /letters/progress", protect(http.HandlerFunc(s.handleProgress)))
	mux.Handle("PUT /letters/{id}", protect(http.HandlerFunc(s.handleUpdateLetter)))

	mux.Handle("GET /jobs", protect(http.HandlerFunc(s.handleListJobs)))
	mux.Handle("POST /jobs/import", protect(http.HandlerFunc(s.handleImportJob)))
	mux.Handle("GET /jobs/{id}", protect(http.HandlerFunc(s.handleGetJob)))
	mux.Handle("DELETE /jobs/{id}", protect(http.HandlerFunc(s.handleDeleteJob)))
	mux.Handle("GET /jobs/{id}/letter", protect(http.HandlerFunc(s.handleJobLetter)))

	mux.Handle("GET /profile", protect(http.HandlerFunc(s.handleGetProfile)))
	mux.Handle("PUT /profile", protect(http.HandlerFunc(s.handleUpdateProfile)))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(cfg.AllowedOrigins, mux)))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation may run for the whole deadline; streams longer.
		WriteTimeout: cfg.Deadline + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the per-owner orchestrators.
func (s *Server) Registry() *generation.Registry {
	return s.registry
}

// Start serves until ctx is done, then aborts live runs and shuts down.
func (s *Server) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if s.redis != nil {
		if err := s.redis.Forward(gCtx, s.bus); err != nil {
			return fmt.Errorf("failed to forward progress: %w", err)
		}
	}

	g.Go(func() error {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if n := s.registry.Evict(orchestratorIdleTTL); n > 0 {
					s.log.Debug("evicted idle orchestrators", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.log.Info("shutting down server")
		if n := s.registry.CancelAll(); n > 0 {
			s.log.Info("aborted live generation runs", "count", n)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.rateLimiter.Stop()
	s.log.Info("server stopped")
	return err
}

// withCORS answers preflight requests and sets CORS headers.
// No origins means any origin.
func (s *Server) withCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         600,
	})
	return c.Handler(next)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs. It keeps
// Flush working for event streams.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		kv := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", s.extractClientID(r),
		}
		switch {
		case rec.status >= 500:
			s.log.Error("request failed", kv...)
		case r.URL.Path == "/health":
			s.log.Debug("request", kv...)
		default:
			s.log.Info("request", kv...)
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.database.Ping(ctx); err != nil {
			s.log.Warn("health check: database unreachable", "error", err)
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// ownerID returns the authenticated user as a gateway owner id.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.GetUserID(r)
	if err != nil || id == uuid.Nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return id.String(), true
}

// extractClientID uses the peer IP from RemoteAddr.
// X-Forwarded-For is ignored: there is no trusted proxy list.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "For mange forespørgsler. Prøv igen om lidt.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.log.Warn("rate limit exceeded", "limit", info.Limit, "reset", info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
