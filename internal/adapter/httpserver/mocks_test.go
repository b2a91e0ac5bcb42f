package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/app"
	"github.com/pscheid92/likelovehate/internal/domain"
	"github.com/pscheid92/likelovehate/internal/platform/config"
)

const testRemoteAddr = "1.2.3.4:1234"

type mockAppService struct {
	reactFn            func(ctx context.Context, req app.ReactRequest) error
	getItemReactionsFn func(ctx context.Context, itemID string) (*domain.ItemReactions, error)
	getMyReactionFn    func(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error)
	deleteReactionFn   func(ctx context.Context, itemID, userID string) error
	exportAllFn        func(ctx context.Context) ([]byte, error)
	colors             domain.ReactionColors
}

func (m *mockAppService) React(ctx context.Context, req app.ReactRequest) error {
	if m.reactFn != nil {
		return m.reactFn(ctx, req)
	}
	return nil
}

func (m *mockAppService) GetItemReactions(ctx context.Context, itemID string) (*domain.ItemReactions, error) {
	if m.getItemReactionsFn != nil {
		return m.getItemReactionsFn(ctx, itemID)
	}
	return &domain.ItemReactions{ItemID: itemID, Reactions: []domain.Reaction{}}, nil
}

func (m *mockAppService) GetMyReaction(ctx context.Context, itemID, userID string) (domain.Reaction, bool, error) {
	if m.getMyReactionFn != nil {
		return m.getMyReactionFn(ctx, itemID, userID)
	}
	return domain.Reaction{}, false, nil
}

func (m *mockAppService) DeleteReaction(ctx context.Context, itemID, userID string) error {
	if m.deleteReactionFn != nil {
		return m.deleteReactionFn(ctx, itemID, userID)
	}
	return nil
}

func (m *mockAppService) ExportAll(ctx context.Context) ([]byte, error) {
	if m.exportAllFn != nil {
		return m.exportAllFn(ctx)
	}
	return []byte("[]"), nil
}

func (m *mockAppService) Colors() domain.ReactionColors {
	return m.colors
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8080",
		CORSAllowOrigins:   "*",
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo:      echo.New(),
		config:    testConfig(),
		app:       app,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withRateLimit(perSecond float64, burst int) func(*Server) {
	return func(s *Server) {
		s.config.RateLimitPerSecond = perSecond
		s.config.RateLimitBurst = burst
	}
}

func withMetrics(reg *prometheus.Registry) func(*Server) {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = metrics.NewHTTPMetrics(reg)
	}
}

// serve sends a request through the full middleware chain and router.
func serve(srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}
