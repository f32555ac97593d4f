// Package web serves the census table, the prefecture population mapping and
// the tokenizer over a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/config"
	"github.com/JonMunkholm/census/internal/logging"
	mw "github.com/JonMunkholm/census/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CensusSource loads a fresh census table on every call.
type CensusSource interface {
	Load(ctx context.Context) (*census.Table, error)
}

// PopulationStore persists census loads. *store.Store implements it.
type PopulationStore interface {
	SaveTable(ctx context.Context, loadID uuid.UUID, t *census.Table) (int64, error)
	PopulationByLoad(ctx context.Context, loadID uuid.UUID) (map[string]int64, error)
	DeleteLoad(ctx context.Context, loadID uuid.UUID) (int64, error)
}

// Server is the HTTP server for the census API.
type Server struct {
	cfg      config.ServerConfig
	security config.SecurityConfig
	census   CensusSource
	store    PopulationStore // nil when no database is configured
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server. st may be nil, in which case the store
// endpoints answer 503.
func NewServer(cfg config.ServerConfig, security config.SecurityConfig, src CensusSource, st PopulationStore) *Server {
	s := &Server{
		cfg:      cfg,
		security: security,
		census:   src,
		store:    st,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/census", s.handleCensus)
		r.Get("/prefectures", s.handlePrefectures)

		r.Post("/tokenize", s.handleTokenize)
		r.Get("/zen", s.handleZen)

		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(&s.security))
			r.Post("/census/store", s.handleStoreCensus)
			r.Delete("/census/loads/{loadID}", s.handleDeleteLoad)
		})
		r.Get("/census/loads/{loadID}", s.handleLoadPopulation)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. It is safe to call before or
// concurrently with Start; a Start after Shutdown returns http.ErrServerClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "path", r.URL.Path, "error", err)
	}
}
