package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

func TestNewClient_Connects(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestGameCache_Integration(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	m := metrics.NewCacheMetrics(prometheus.NewRegistry())
	client.AddHook(NewMetricsHook(m))
	cache := NewGameCache(client, DefaultGameCacheConfig(), m)

	event := liveMatch(20, 0)
	require.NoError(t, cache.Put(ctx, event, 0))

	raw, err := client.Get(ctx, "game:20").Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"matchStartTime":"2025-03-09T16:00:00"`)

	ttl, err := client.TTL(ctx, "game:20").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "no expiry by default")

	got, err := cache.Get(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, event, got)

	require.NoError(t, cache.Put(ctx, liveMatch(21, 10), time.Minute))
	ttl, err = client.TTL(ctx, "game:21").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	require.NoError(t, cache.Delete(ctx, 20))
	got, err = cache.Get(ctx, 20)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGameCache_IntegrationUnreachableBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	rdb, err := NewClient(context.Background(), testRedisURL)
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	cfg := DefaultGameCacheConfig()
	cfg.RetryBackoff = time.Millisecond
	cache := NewGameCache(rdb, cfg, nil)

	err = cache.Put(context.Background(), &domain.ScoreEvent{ID: 1}, 0)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
