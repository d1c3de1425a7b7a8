// Package server exposes the recommendation service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/workflow"
)

// Recommender is the service surface the HTTP layer depends on.
type Recommender interface {
	Recommend(ctx context.Context, rawQuery string) (*workflow.Result, error)
	Reload(ctx context.Context) error
	Snapshot() *catalog.Snapshot
}

// HTTPServer wraps the chi router and http.Server.
type HTTPServer struct {
	server  *http.Server
	router  *chi.Mux
	logger  *slog.Logger
	svc     Recommender
	limiter *RateLimiter
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64  // 0 disables rate limiting
	RateLimitBurst int
}

// NewHTTPServer creates the HTTP server with all routes registered.
func NewHTTPServer(cfg HTTPServerConfig, svc Recommender) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{logger: logger, svc: svc}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))
	if cfg.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		router.Use(s.limiter.Middleware)
	}

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)
	router.Route("/v1", func(r chi.Router) {
		r.Post("/recommend", s.handleRecommend)
		r.Post("/reload", s.handleReload)
		r.Get("/assessments", s.handleListAssessments)
		r.Get("/assessments/{id}", s.handleGetAssessment)
	})

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // Request deadline plus slack
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying chi router, for tests.
func (s *HTTPServer) Router() *chi.Mux {
	return s.router
}

type recommendRequest struct {
	Query string `json:"query"`
}

type recommendationEntry struct {
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	RemoteSupport   bool     `json:"remote_testing_support"`
	AdaptiveSupport bool     `json:"adaptive_irt_support"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	TestTypes       []string `json:"test_types"`
	Explanation     string   `json:"explanation"`
	Score           float64  `json:"score"`
}

type recommendResponse struct {
	Recommendations []recommendationEntry `json:"recommendations"`
}

func (s *HTTPServer) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.svc.Recommend(r.Context(), req.Query)
	if err != nil {
		var wfErr *workflow.Error
		if errors.As(err, &wfErr) {
			status := http.StatusInternalServerError
			if wfErr.Reason == workflow.ReasonRetrievalUnavailable {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, string(wfErr.Reason))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := recommendResponse{Recommendations: make([]recommendationEntry, 0, len(result.Recommendations))}
	for _, rec := range result.Recommendations {
		resp.Recommendations = append(resp.Recommendations, recommendationEntry{
			Name:            rec.Assessment.Name,
			URL:             rec.Assessment.URL,
			RemoteSupport:   rec.Assessment.RemoteSupport,
			AdaptiveSupport: rec.Assessment.AdaptiveSupport,
			DurationMinutes: rec.Assessment.DurationMinutes,
			TestTypes:       rec.Assessment.TestTypes,
			Explanation:     rec.Explanation,
			Score:           rec.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(r.Context()); err != nil {
		s.logger.Error("catalog reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"items":  s.svc.Snapshot().Len(),
	})
}

func (s *HTTPServer) handleListAssessments(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": snap.Len(),
		"items": snap.Items(),
	})
}

func (s *HTTPServer) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a := s.svc.Snapshot().Get(id)
	if a == nil {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	// Ready once a corpus snapshot is loaded; an empty corpus still serves
	// (valid empty results), so report it rather than gate on it.
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"items":  s.svc.Snapshot().Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
