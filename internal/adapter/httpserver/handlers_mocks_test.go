package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/broadcast"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

// --- Mock implementations ---

type mockGames struct {
	getFn  func(ctx context.Context, id int64) (*domain.ScoreEvent, error)
	saveFn func(ctx context.Context, event *domain.ScoreEvent) error
}

func (m *mockGames) Get(ctx context.Context, id int64) (*domain.ScoreEvent, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrGameNotFound
}

func (m *mockGames) Save(ctx context.Context, event *domain.ScoreEvent) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, event)
	}
	return nil
}

// --- Test server ---

type testServerOptions struct {
	cfg   Config
	deps  Deps
	clock clockwork.Clock
}

type testServerOption func(*testServerOptions)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.deps.HealthChecks = checks }
}

func withGames(games gameService) testServerOption {
	return func(o *testServerOptions) { o.deps.Games = games }
}

func withLimits(limits LimitsConfig) testServerOption {
	return func(o *testServerOptions) { o.cfg.Limits = limits }
}

func withAllowedOrigins(origins ...string) testServerOption {
	return func(o *testServerOptions) { o.cfg.AllowedOrigins = origins }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(o *testServerOptions) { o.clock = clock }
}

type testEnv struct {
	srv        *Server
	hub        *broadcast.Hub
	hubMetrics *metrics.HubMetrics
}

func newTestServer(t *testing.T, opts ...testServerOption) *testEnv {
	t.Helper()

	o := &testServerOptions{
		cfg: Config{
			Port:             "0",
			AppEnv:           "test",
			SubscriberBuffer: 8,
			Limits: LimitsConfig{
				MaxSubscribers:      100,
				MaxSubscribersPerIP: 10,
				SubscribeRate:       100,
				SubscribeBurst:      100,
			},
		},
		deps:  Deps{Games: &mockGames{}},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}

	reg := prometheus.NewRegistry()
	hubMetrics := metrics.NewHubMetrics(reg)
	hubCfg := broadcast.DefaultConfig()
	hubCfg.SubscriberBuffer = o.cfg.SubscriberBuffer
	hubCfg.HeartbeatInterval = time.Second
	hub := broadcast.NewHub(hubCfg, o.clock, hubMetrics)
	t.Cleanup(hub.Stop)

	o.deps.Hub = hub
	o.deps.HubMetrics = hubMetrics
	o.deps.HTTPMetrics = metrics.NewHTTPMetrics(reg)
	o.deps.MetricsHandler = metrics.Handler(reg)
	o.deps.Clock = o.clock

	return &testEnv{
		srv:        NewServer(o.cfg, o.deps),
		hub:        hub,
		hubMetrics: hubMetrics,
	}
}
