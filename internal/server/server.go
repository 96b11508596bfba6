package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ostrauk/mailboard/internal/analytics"
	"github.com/ostrauk/mailboard/internal/config"
	"github.com/ostrauk/mailboard/internal/metrics"
	"github.com/ostrauk/mailboard/internal/session"
)

// Analytics is the aggregation surface the dashboard serves
type Analytics interface {
	Overview(ctx context.Context) ([]analytics.OverviewRow, error)
	Detail(ctx context.Context, campaignID string) (*analytics.CampaignDetail, error)
	Subscribers(ctx context.Context, campaignID, listID string) ([]analytics.SubscriberRow, error)
	Growth(ctx context.Context, listID string) ([]analytics.GrowthRow, error)
	AudienceInfo(ctx context.Context, listID string) (*analytics.Audience, error)
}

// Server is the dashboard HTTP API server
type Server struct {
	router        *chi.Mux
	httpServer    *http.Server
	svc           Analytics
	sessions      *session.Store
	metrics       *metrics.Metrics
	config        *config.HTTPConfig
	defaultListID string
	logger        *slog.Logger
	startTime     time.Time
}

// NewServer creates a new dashboard server
func NewServer(svc Analytics, sessions *session.Store, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		svc:           svc,
		sessions:      sessions,
		metrics:       m,
		config:        &cfg.HTTP,
		defaultListID: cfg.Mailchimp.ListID,
		logger:        logger.With("component", "server"),
		startTime:     time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/overview", s.handleOverview)
		r.Get("/overview.csv", s.handleOverviewCSV)
		r.Get("/overview/monthly", s.handleMonthly)
		r.Get("/campaigns/{id}", s.handleCampaignDetail)
		r.Get("/campaigns/{id}/subscribers", s.handleSubscribers)
		r.Get("/campaigns/{id}/subscribers.csv", s.handleSubscribersCSV)
		r.Get("/lists/{id}", s.handleAudience)
		r.Get("/lists/{id}/growth", s.handleGrowth)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting dashboard server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
