package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/breaker"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/retry"
)

const (
	gameKeyPrefix   = "game:"
	breakerName     = "redis"
	maxRetryBackoff = 500 * time.Millisecond
)

type GameCacheConfig struct {
	OpTimeout       time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

func DefaultGameCacheConfig() GameCacheConfig {
	return GameCacheConfig{
		OpTimeout:       2 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    50 * time.Millisecond,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
	}
}

// DecodeError reports a cached value that is not a valid score event.
// It is never retried and does not count against the circuit breaker.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable cache entry %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GameCache stores the latest reconciled state of each match under
// game:<id>. Every call runs inside the "redis" circuit breaker, which wraps
// a bounded retry loop with a per-attempt timeout.
type GameCache struct {
	rdb       goredis.Cmdable
	breaker   *breaker.Breaker
	policy    retry.Policy
	opTimeout time.Duration
	metrics   *metrics.CacheMetrics
}

var _ domain.GameCache = (*GameCache)(nil)

// NewGameCache builds a cache over rdb. m may be nil.
func NewGameCache(rdb goredis.Cmdable, cfg GameCacheConfig, m *metrics.CacheMetrics) *GameCache {
	g := &GameCache{
		rdb:       rdb,
		opTimeout: cfg.OpTimeout,
		metrics:   m,
		policy: retry.Policy{
			MaxAttempts:    cfg.RetryAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     maxRetryBackoff,
			BusyBackoff:    maxRetryBackoff,
		},
	}

	g.breaker = breaker.New(breaker.Config{
		Name:     breakerName,
		Failures: uint32(max(cfg.BreakerFailures, 1)),
		OpenFor:  cfg.BreakerOpenFor,
		Ignore:   isCallerError,
		OnStateChange: func(name string, _, to breaker.State) {
			if m == nil {
				return
			}
			m.BreakerState.WithLabelValues(name).Set(breaker.StateValue(to))
			m.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
		},
	})
	if m != nil {
		m.BreakerState.WithLabelValues(breakerName).Set(breaker.StateValue(breaker.StateClosed))
	}
	return g
}

// Put stores event under its id. ttl 0 keeps the entry until overwritten or
// deleted.
func (g *GameCache) Put(ctx context.Context, event *domain.ScoreEvent, ttl time.Duration) error {
	if event == nil || event.ID <= 0 {
		slog.WarnContext(ctx, "Ignoring cache write without game id")
		return nil
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode game %d: %w", event.ID, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	key := gameKey(event.ID)
	return g.call(ctx, "put", func(ctx context.Context) error {
		return g.rdb.Set(ctx, key, encoded, ttl).Err()
	})
}

// Get returns the cached event, or nil when no entry exists.
func (g *GameCache) Get(ctx context.Context, id int64) (*domain.ScoreEvent, error) {
	if id <= 0 {
		slog.WarnContext(ctx, "Ignoring cache read without game id")
		return nil, nil
	}

	key := gameKey(id)
	var event *domain.ScoreEvent
	err := g.call(ctx, "get", func(ctx context.Context) error {
		data, err := g.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			event = nil
			return nil
		}
		if err != nil {
			return err
		}

		var decoded domain.ScoreEvent
		if err := json.Unmarshal(data, &decoded); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
		event = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes the entry for id. Deleting an absent entry succeeds.
func (g *GameCache) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		slog.WarnContext(ctx, "Ignoring cache delete without game id")
		return nil
	}

	key := gameKey(id)
	return g.call(ctx, "delete", func(ctx context.Context) error {
		return g.rdb.Del(ctx, key).Err()
	})
}

// BreakerState exposes the current circuit state for readiness reporting.
func (g *GameCache) BreakerState() breaker.State {
	return g.breaker.State()
}

func (g *GameCache) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := g.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.DebugContext(ctx, "Retrying game cache operation",
			"operation", op, "attempt", attempt, "backoff", backoff, "error", err)
		if g.metrics != nil {
			g.metrics.Retries.WithLabelValues(op).Inc()
		}
	}

	err := g.breaker.Execute(func() error {
		return retry.DoVoid(ctx, policy, classify, func(ctx context.Context) error {
			opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
			defer cancel()
			return fn(opCtx)
		})
	})
	if err == nil {
		return nil
	}

	var decodeErr *DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return fmt.Errorf("game cache %s: %w", op, decodeErr)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("game cache %s: %w", op, err)
	default:
		return fmt.Errorf("game cache %s: %w: %w", op, domain.ErrBackendUnavailable, err)
	}
}

// classify decides how the retry loop treats a failed attempt.
func classify(err error) retry.Action {
	if isCallerError(err) {
		return retry.Stop
	}

	var redisErr goredis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		switch {
		case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "BUSY"), strings.HasPrefix(msg, "TRYAGAIN"):
			return retry.After
		case strings.HasPrefix(msg, "READONLY"), strings.HasPrefix(msg, "MASTERDOWN"), strings.HasPrefix(msg, "CLUSTERDOWN"):
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	return retry.Retry
}

// isCallerError reports failures caused by the caller or the stored data
// rather than by the backend.
func isCallerError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr) || errors.Is(err, context.Canceled)
}

func gameKey(id int64) string {
	return gameKeyPrefix + strconv.FormatInt(id, 10)
}
