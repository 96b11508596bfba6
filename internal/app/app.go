package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ostrauk/mailboard/internal/analytics"
	"github.com/ostrauk/mailboard/internal/config"
	"github.com/ostrauk/mailboard/internal/mailchimp"
	"github.com/ostrauk/mailboard/internal/metrics"
	"github.com/ostrauk/mailboard/internal/server"
	"github.com/ostrauk/mailboard/internal/session"
)

// App is the main application
type App struct {
	config        *config.Config
	client        *mailchimp.Client
	service       *analytics.Service
	sessions      *session.Store
	server        *server.Server
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	m := metrics.New()

	client := mailchimp.NewClient(cfg.UpstreamBaseURL(), cfg.Mailchimp.APIKey)
	client.SetRecorder(m)
	client.SetTimeout(cfg.Mailchimp.Timeout)

	service := analytics.New(client, logger, analytics.Config{
		Concurrency:   cfg.Fetch.Concurrency,
		CampaignCount: cfg.Fetch.CampaignCount,
		ActivityCount: cfg.Fetch.ActivityCount,
		MemberCount:   cfg.Fetch.MemberCount,
	})

	sessions := session.NewStore()

	srv := server.NewServer(service, sessions, cfg, m, logger)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, logger)
	}

	return &App{
		config:        cfg,
		client:        client,
		service:       service,
		sessions:      sessions,
		server:        srv,
		metrics:       m,
		metricsServer: metricsServer,
		logger:        logger,
	}, nil
}

// Service exposes the aggregation service for CLI commands
func (a *App) Service() *analytics.Service {
	return a.service
}

// Client exposes the upstream client for CLI commands
func (a *App) Client() *mailchimp.Client {
	return a.client
}

// Logger exposes the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run starts the dashboard and blocks until a signal or server error
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting mailboard",
		"http_addr", a.config.HTTP.ListenAddr,
		"server_prefix", a.config.Mailchimp.ServerPrefix,
		"metrics_enabled", a.config.Metrics.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("dashboard server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("dashboard shutdown failed", "error", err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics shutdown failed", "error", err)
		}
	}

	a.logger.Info("mailboard stopped")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
