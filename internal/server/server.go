// Package server provides the HTTP server setup and wiring.
package server

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nomadhouse/nomadhouse/internal/accounts"
	"github.com/nomadhouse/nomadhouse/internal/auth"
	collectionDomain "github.com/nomadhouse/nomadhouse/internal/collection/domain"
	collectionTransport "github.com/nomadhouse/nomadhouse/internal/collection/transport"
	"github.com/nomadhouse/nomadhouse/internal/config"
	marketplaceDomain "github.com/nomadhouse/nomadhouse/internal/marketplace/domain"
	marketplaceTransport "github.com/nomadhouse/nomadhouse/internal/marketplace/transport"
	"github.com/nomadhouse/nomadhouse/internal/middleware/logging"
	"github.com/nomadhouse/nomadhouse/internal/middleware/ratelimit"
	"github.com/nomadhouse/nomadhouse/internal/middleware/realip"
	"github.com/nomadhouse/nomadhouse/internal/middleware/security"
	"github.com/nomadhouse/nomadhouse/internal/observability/metrics"
	"github.com/nomadhouse/nomadhouse/internal/payout"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	collectionSvc  collectionDomain.Service
	marketplaceSvc marketplaceDomain.Service
	accountsSvc    *accounts.Service
}

// New creates a new server. The ledger must already be migrated and deployed.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Buy and collect move deeds and money through the same transaction as
	// the listing update, so the marketplace gets the collection's custody
	// and the payout engine rather than their HTTP surfaces.
	s.collectionSvc = collectionDomain.LoggingMiddleware(logger)(collectionDomain.NewService(store))
	s.marketplaceSvc = marketplaceDomain.LoggingMiddleware(logger)(
		marketplaceDomain.NewService(store, collectionDomain.NewCustody(), payout.NewPayer(logger)),
	)
	s.accountsSvc = accounts.NewService(store, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Client IP first: rate limiting and request logs depend on it.
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		IdleTTL:        s.cfg.RateLimit.IdleTTL,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/api/openapi.yaml", s.handleOpenAPISpec)

	collectionHandler := collectionTransport.NewHandler(s.collectionSvc)
	marketplaceHandler := marketplaceTransport.NewHandler(s.marketplaceSvc)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reads are public. A caller header or key is still resolved when
		// present so request logs carry it.
		r.Use(s.identify())

		r.Route("/collection", func(r chi.Router) {
			collectionHandler.RegisterReadRoutes(r)
			r.Group(func(r chi.Router) {
				s.requireCaller(r)
				collectionHandler.RegisterWriteRoutes(r)
			})
		})

		r.Route("/marketplace", func(r chi.Router) {
			marketplaceHandler.RegisterReadRoutes(r)
			r.Group(func(r chi.Router) {
				s.requireCaller(r)
				marketplaceHandler.RegisterWriteRoutes(r)
			})
		})

		r.Route("/accounts", s.accountsSvc.RegisterRoutes)

		r.Group(func(r chi.Router) {
			s.requireCaller(r)
			r.Get("/whoami", s.handleWhoAmI)
		})
	})
}

// identify resolves the caller without requiring one
func (s *Server) identify() func(http.Handler) http.Handler {
	if s.cfg.Auth.Type == "api-key" {
		return auth.OptionalMiddleware(s.store)
	}
	return auth.HeaderMiddleware(writeError)
}

// requireCaller guards write routes
func (s *Server) requireCaller(r chi.Router) {
	if s.cfg.Auth.Type == "api-key" {
		r.Use(auth.Middleware(s.store, writeError))
		return
	}
	r.Use(auth.RequireCaller(writeError))
}

// handleOpenAPISpec serves the API description
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(openAPISpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWhoAmI returns the address the request acts as
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())
	resp := map[string]string{"address": caller.Hex()}
	if key := auth.GetAPIKeyFromContext(r.Context()); key != nil {
		resp["keyName"] = key.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReady reports ready once the ledger answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
