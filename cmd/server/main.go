package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/jonboulle/clockwork"
	nc "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/httpserver"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/queue"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/redis"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/app"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/broadcast"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/config"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/logging"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

type queueResult struct {
	conn       *nc.Conn
	subscriber *wmnats.Subscriber
	publisher  *wmnats.Publisher
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, m *metrics.CacheMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(m))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func natsConfig(cfg *config.Config) queue.NATSConfig {
	return queue.NATSConfig{
		URL:         cfg.NATSURL,
		Stream:      cfg.QueueStream,
		Subjects:    []string{cfg.QueueTopic, cfg.QueueDLQTopic},
		QueueGroup:  cfg.QueueGroup,
		Subscribers: cfg.QueueSubscribers,
		ClientName:  "placar-server",
	}
}

func setupQueue(cfg *config.Config, logger watermill.LoggerAdapter) queueResult {
	natsCfg := natsConfig(cfg)

	conn, err := queue.Connect(natsCfg)
	if err != nil {
		slog.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.EnsureStream(ctx, conn, natsCfg); err != nil {
		slog.Error("Failed to provision JetStream stream", "error", err)
		os.Exit(1)
	}

	sub, err := queue.NewSubscriber(natsCfg, logger)
	if err != nil {
		slog.Error("Failed to create subscriber", "error", err)
		os.Exit(1)
	}

	pub, err := queue.NewPublisher(natsCfg, logger)
	if err != nil {
		slog.Error("Failed to create dead-letter publisher", "error", err)
		os.Exit(1)
	}

	return queueResult{conn: conn, subscriber: sub, publisher: pub}
}

func gameCacheConfig(cfg *config.Config) redis.GameCacheConfig {
	return redis.GameCacheConfig{
		OpTimeout:       cfg.CacheOpTimeout,
		RetryAttempts:   cfg.CacheRetryAttempts,
		RetryBackoff:    cfg.CacheRetryBackoff,
		BreakerFailures: cfg.CacheBreakerFailures,
		BreakerOpenFor:  cfg.CacheBreakerOpenFor,
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	cacheMetrics := metrics.NewCacheMetrics(registry)
	hubMetrics := metrics.NewHubMetrics(registry)
	intakeMetrics := metrics.NewIntakeMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	redisClient := setupRedis(cfg, cacheMetrics)
	gameCache := redis.NewGameCache(redisClient, gameCacheConfig(cfg), cacheMetrics)

	wmLogger := watermill.NewSlogLogger(slog.Default())
	q := setupQueue(cfg, wmLogger)

	hub := broadcast.NewHub(broadcast.Config{
		Workers:           cfg.BroadcastWorkers,
		QueueSize:         cfg.BroadcastQueue,
		SubscriberBuffer:  cfg.SubscriberBuffer,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, clock, hubMetrics)

	intake := app.NewIntake(gameCache, hub, cfg.CacheTTL, clock, intakeMetrics)
	games := app.NewGames(gameCache, cfg.CacheTTL)

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		Topic:        cfg.QueueTopic,
		DLQTopic:     cfg.QueueDLQTopic,
		CloseTimeout: shutdownTimeout,
	}, q.subscriber, q.publisher, intake, intakeMetrics, wmLogger)
	if err != nil {
		slog.Error("Failed to create consumer", "error", err)
		os.Exit(1)
	}

	srv := httpserver.NewServer(httpserver.Config{
		Port:             cfg.Port,
		AppEnv:           cfg.AppEnv,
		AllowedOrigins:   cfg.AllowedOrigins(),
		SubscriberBuffer: cfg.SubscriberBuffer,
		Limits: httpserver.LimitsConfig{
			MaxSubscribers:      cfg.MaxSubscribers,
			MaxSubscribersPerIP: cfg.MaxSubscribersPerIP,
			SubscribeRate:       cfg.SubscribeRate,
			SubscribeBurst:      cfg.SubscribeBurst,
		},
	}, httpserver.Deps{
		Hub:   hub,
		Games: games,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "nats", Check: func(context.Context) error { return queue.CheckConnection(q.conn) }},
		},
		HTTPMetrics:    httpMetrics,
		HubMetrics:     hubMetrics,
		MetricsHandler: metrics.Handler(registry),
		Clock:          clock,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// the router is closed explicitly during shutdown so in-flight messages
	// finish after the HTTP server has stopped
	g.Go(func() error {
		return consumer.Run(context.Background())
	})

	g.Go(func() error {
		hub.RunHeartbeat(heartbeatCtx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if err := consumer.Close(); err != nil {
			slog.Error("Consumer shutdown error", "error", err)
		}

		stopHeartbeat()
		hub.Stop()

		if err := q.publisher.Close(); err != nil {
			slog.Error("Failed to close dead-letter publisher", "error", err)
		}
		q.conn.Close()

		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
