package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/broadcast"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

type subscriptionHub interface {
	Register(channel domain.Channel) (*broadcast.Stream, error)
	Attach(channel domain.Channel, conn broadcast.Conn) error
	ChannelStatus() map[string]int
}

type gameService interface {
	Get(ctx context.Context, id int64) (*domain.ScoreEvent, error)
	Save(ctx context.Context, event *domain.ScoreEvent) error
}

type Config struct {
	Port             string
	AppEnv           string
	AllowedOrigins   []string
	SubscriberBuffer int
	Limits           LimitsConfig
}

// Deps are the collaborators the gateway serves. HTTPMetrics, HubMetrics and
// MetricsHandler may be nil.
type Deps struct {
	Hub            subscriptionHub
	Games          gameService
	HealthChecks   []HealthCheck
	HTTPMetrics    *metrics.HTTPMetrics
	HubMetrics     *metrics.HubMetrics
	MetricsHandler http.Handler
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config Config

	hub          subscriptionHub
	games        gameService
	healthChecks []HealthCheck
	httpMetrics  *metrics.HTTPMetrics
	hubMetrics   *metrics.HubMetrics
	metrics      http.Handler
	clock        clockwork.Clock

	limits    *ConnectionLimits
	upgrader  websocket.Upgrader
	startTime time.Time

	// closing ends every open stream handler; http.Server.Shutdown waits for
	// handlers but never cancels their request contexts.
	closing   chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		hub:          deps.Hub,
		games:        deps.Games,
		healthChecks: deps.HealthChecks,
		httpMetrics:  deps.HTTPMetrics,
		hubMetrics:   deps.HubMetrics,
		metrics:      deps.MetricsHandler,
		clock:        clock,
		limits:       NewConnectionLimits(cfg.Limits, clock),
		upgrader:     newUpgrader(cfg),
		startTime:    clock.Now(),
		closing:      make(chan struct{}),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown ends open SSE and WebSocket subscriptions, then waits for in-flight
// requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
