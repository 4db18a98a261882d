package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	RedisURL  string `env:"REDIS_URL"`
	NATSURL   string `env:"NATS_URL"`

	QueueStream      string `env:"QUEUE_STREAM" default:"GAMES"`
	QueueTopic       string `env:"QUEUE_TOPIC" default:"games.matches"`
	QueueDLQTopic    string `env:"QUEUE_DLQ_TOPIC" default:"games.matches.dlq"`
	QueueGroup       string `env:"QUEUE_GROUP" default:"placar-consumer"`
	QueueSubscribers int    `env:"QUEUE_SUBSCRIBERS" default:"4"`

	CacheTTL             time.Duration `env:"CACHE_TTL" default:"0s"`
	CacheOpTimeout       time.Duration `env:"CACHE_OP_TIMEOUT" default:"2s"`
	CacheRetryAttempts   int           `env:"CACHE_RETRY_ATTEMPTS" default:"3"`
	CacheRetryBackoff    time.Duration `env:"CACHE_RETRY_BACKOFF" default:"50ms"`
	CacheBreakerFailures int           `env:"CACHE_BREAKER_FAILURES" default:"5"`
	CacheBreakerOpenFor  time.Duration `env:"CACHE_BREAKER_OPEN_FOR" default:"30s"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"10s"`
	BroadcastWorkers  int           `env:"BROADCAST_WORKERS" default:"4"`
	BroadcastQueue    int           `env:"BROADCAST_QUEUE" default:"1000"`
	SubscriberBuffer  int           `env:"SUBSCRIBER_BUFFER" default:"32"`

	MaxSubscribers      int     `env:"MAX_SUBSCRIBERS" default:"10000"`
	MaxSubscribersPerIP int     `env:"MAX_SUBSCRIBERS_PER_IP" default:"50"`
	SubscribeRate       float64 `env:"SUBSCRIBE_RATE" default:"10"`
	SubscribeBurst      int     `env:"SUBSCRIBE_BURST" default:"20"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into trimmed, non-empty origins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"REDIS_URL", cfg.RedisURL},
		{"NATS_URL", cfg.NATSURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if cfg.QueueStream == "" || strings.ContainsAny(cfg.QueueStream, ". *>") {
		return fmt.Errorf("QUEUE_STREAM must be a non-empty name without '.', '*', '>' or spaces, got %q", cfg.QueueStream)
	}
	if cfg.QueueTopic == cfg.QueueDLQTopic {
		return errors.New("QUEUE_DLQ_TOPIC must differ from QUEUE_TOPIC")
	}

	positive := []struct {
		name  string
		value int
	}{
		{"QUEUE_SUBSCRIBERS", cfg.QueueSubscribers},
		{"CACHE_RETRY_ATTEMPTS", cfg.CacheRetryAttempts},
		{"CACHE_BREAKER_FAILURES", cfg.CacheBreakerFailures},
		{"BROADCAST_WORKERS", cfg.BroadcastWorkers},
		{"BROADCAST_QUEUE", cfg.BroadcastQueue},
		{"SUBSCRIBER_BUFFER", cfg.SubscriberBuffer},
		{"MAX_SUBSCRIBERS", cfg.MaxSubscribers},
		{"MAX_SUBSCRIBERS_PER_IP", cfg.MaxSubscribersPerIP},
		{"SUBSCRIBE_BURST", cfg.SubscribeBurst},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if cfg.SubscribeRate <= 0 {
		return fmt.Errorf("SUBSCRIBE_RATE must be positive, got %v", cfg.SubscribeRate)
	}
	if cfg.MaxSubscribersPerIP > cfg.MaxSubscribers {
		return errors.New("MAX_SUBSCRIBERS_PER_IP cannot exceed MAX_SUBSCRIBERS")
	}

	if cfg.CacheTTL < 0 {
		return errors.New("CACHE_TTL cannot be negative")
	}
	if cfg.CacheOpTimeout <= 0 {
		return errors.New("CACHE_OP_TIMEOUT must be positive")
	}
	if cfg.CacheBreakerOpenFor <= 0 {
		return errors.New("CACHE_BREAKER_OPEN_FOR must be positive")
	}
	if cfg.HeartbeatInterval < time.Second {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be at least 1s, got %s", cfg.HeartbeatInterval)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	return nil
}
