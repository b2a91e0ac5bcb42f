package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/app"
	"github.com/pscheid92/likelovehate/internal/domain"
	"github.com/pscheid92/likelovehate/internal/platform/config"
)

type appService interface {
	React(ctx context.Context, req app.ReactRequest) error
	GetItemReactions(ctx context.Context, itemID string) (*domain.ItemReactions, error)
	GetMyReaction(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error)
	DeleteReaction(ctx context.Context, itemID, userID string) error
	ExportAll(ctx context.Context) ([]byte, error)
	Colors() domain.ReactionColors
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    appService

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer builds the HTTP API. registry may be nil, in which case /metrics
// is not served and requests are not instrumented.
func NewServer(cfg *config.Config, app appService, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		registry:     registry,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	if registry != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
