package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

func newTestIntake(cache *memCache, b *recordingBroadcaster) (*Intake, *metrics.IntakeMetrics) {
	m := metrics.NewIntakeMetrics(prometheus.NewRegistry())
	return NewIntake(cache, b, 0, clockwork.NewFakeClock(), m), m
}

func TestIntake_NewMatchScenario(t *testing.T) {
	cache := newMemCache()
	b := &recordingBroadcaster{}
	intake, m := newTestIntake(cache, b)

	event := match(10, domain.StatusNotStarted, 0, 0, 0)
	require.NoError(t, intake.Handle(context.Background(), event))

	calls := b.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ChannelNew, calls[0].Channel)
	assert.Equal(t, event, calls[0].Event)

	cached := cache.entry(10)
	require.NotNil(t, cached)
	assert.Equal(t, domain.StatusNotStarted, cached.Status)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsProcessed.WithLabelValues(metrics.ResultBroadcast)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsByChannel.WithLabelValues("new")), 0)
}

func TestIntake_FinalWhistleScenario(t *testing.T) {
	cache := newMemCache(match(20, domain.StatusInProgress, 10, 0, 0))
	b := &recordingBroadcaster{}
	intake, _ := newTestIntake(cache, b)

	require.NoError(t, intake.Handle(context.Background(), match(20, domain.StatusFinished, 90, 2, 1)))

	calls := b.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ChannelEnded, calls[0].Channel)

	got := calls[0].Event
	assert.Equal(t, domain.StatusFinished, got.Status)
	assert.Equal(t, 90, got.ElapsedMinutes)
	assert.Equal(t, 2, got.ScoreA)
	assert.Equal(t, 1, got.ScoreB)
	assert.Equal(t, got, cache.entry(20))
}

func TestIntake_TerminalMatchScenario(t *testing.T) {
	cache := newMemCache(match(30, domain.StatusFinished, 90, 1, 0))
	b := &recordingBroadcaster{}
	intake, m := newTestIntake(cache, b)

	require.NoError(t, intake.Handle(context.Background(), match(30, domain.StatusInProgress, 91, 1, 1)))

	assert.Empty(t, b.recorded())
	assert.Equal(t, 0, cache.puts, "terminal match must not be rewritten")
	assert.Equal(t, domain.StatusFinished, cache.entry(30).Status)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsProcessed.WithLabelValues(metrics.ResultDropped)), 0)
}

func TestIntake_ClassifiesLifecycle(t *testing.T) {
	cache := newMemCache()
	b := &recordingBroadcaster{}
	intake, _ := newTestIntake(cache, b)
	ctx := context.Background()

	steps := []*domain.ScoreEvent{
		match(50, domain.StatusNotStarted, 0, 0, 0),
		match(50, domain.StatusInProgress, 0, 0, 0),
		match(50, domain.StatusInProgress, 17, 1, 0),
		match(50, domain.StatusInProgress, 12, 0, 0), // stale
		match(50, domain.StatusFinished, 93, 1, 0),
		match(50, domain.StatusInProgress, 94, 9, 9), // after final whistle
	}
	for _, e := range steps {
		require.NoError(t, intake.Handle(ctx, e))
	}

	var channels []domain.Channel
	for _, c := range b.recorded() {
		channels = append(channels, c.Channel)
	}
	assert.Equal(t, []domain.Channel{domain.ChannelNew, domain.ChannelKickoff, domain.ChannelScore, domain.ChannelEnded}, channels)
}

func TestIntake_RejectsInvalidEvents(t *testing.T) {
	cache := newMemCache()
	b := &recordingBroadcaster{}
	intake, m := newTestIntake(cache, b)

	err := intake.Handle(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	bad := match(60, domain.StatusInProgress, -1, 0, 0)
	err = intake.Handle(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int64(60), verr.ID)

	assert.Empty(t, b.recorded())
	assert.Equal(t, 0, cache.gets+cache.puts)
	assert.InDelta(t, 2, testutil.ToFloat64(m.EventsProcessed.WithLabelValues(metrics.ResultRejected)), 0)
}

func TestIntake_DeletedRemovesAndAnnounces(t *testing.T) {
	cache := newMemCache(match(70, domain.StatusInProgress, 30, 1, 0))
	b := &recordingBroadcaster{}
	intake, m := newTestIntake(cache, b)

	require.NoError(t, intake.Handle(context.Background(), match(70, domain.StatusDeleted, 30, 1, 0)))

	assert.Nil(t, cache.entry(70))
	assert.Equal(t, 0, cache.gets, "deletes bypass merge")
	calls := b.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ChannelDeleted, calls[0].Channel)
	assert.Equal(t, int64(70), calls[0].Event.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsByChannel.WithLabelValues("deleted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsProcessed.WithLabelValues(metrics.ResultDeleted)), 0)
}

func TestIntake_DeleteFailureIsNotFatal(t *testing.T) {
	cache := newMemCache()
	cache.deleteFn = func(context.Context, int64) error { return domain.ErrBackendUnavailable }
	b := &recordingBroadcaster{}
	intake, _ := newTestIntake(cache, b)

	assert.NoError(t, intake.Handle(context.Background(), match(71, domain.StatusDeleted, 0, 0, 0)))
	assert.Equal(t, 1, cache.deletes)
	require.Len(t, b.recorded(), 1)
	assert.Equal(t, domain.ChannelDeleted, b.recorded()[0].Channel)
}

func TestIntake_CacheWriteFailureStillBroadcasts(t *testing.T) {
	cache := newMemCache()
	cache.putFn = func(context.Context, *domain.ScoreEvent, time.Duration) error {
		return fmt.Errorf("game cache put: %w", domain.ErrBackendUnavailable)
	}
	b := &recordingBroadcaster{}
	intake, _ := newTestIntake(cache, b)

	require.NoError(t, intake.Handle(context.Background(), match(80, domain.StatusInProgress, 0, 0, 0)))
	require.Len(t, b.recorded(), 1)
	assert.Equal(t, domain.ChannelKickoff, b.recorded()[0].Channel)
}

func TestIntake_BroadcastFailureIsNotFatal(t *testing.T) {
	b := &recordingBroadcaster{err: errors.New("hub stopped")}
	intake, _ := newTestIntake(newMemCache(), b)

	assert.NoError(t, intake.Handle(context.Background(), match(81, domain.StatusInProgress, 12, 1, 0)))
	assert.Len(t, b.recorded(), 1)
}

func TestIntake_AppliesTTL(t *testing.T) {
	cache := newMemCache()
	intake := NewIntake(cache, &recordingBroadcaster{}, 6*time.Hour, clockwork.NewRealClock(), nil)

	require.NoError(t, intake.Handle(context.Background(), match(90, domain.StatusNotStarted, 0, 0, 0)))
	assert.Equal(t, 6*time.Hour, cache.lastTTL)
}
