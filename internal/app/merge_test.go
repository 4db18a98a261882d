package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		cached   *domain.ScoreEvent
		incoming *domain.ScoreEvent
		want     decision
	}{
		{"nothing cached", nil, match(1, domain.StatusInProgress, 5, 0, 0), decideFirstSighting},
		{"cached finished", match(1, domain.StatusFinished, 90, 1, 0), match(1, domain.StatusInProgress, 95, 1, 0), decideTerminal},
		{"cached finished, incoming finished", match(1, domain.StatusFinished, 90, 1, 0), match(1, domain.StatusFinished, 90, 2, 0), decideTerminal},
		{"newer elapsed", match(1, domain.StatusInProgress, 10, 0, 0), match(1, domain.StatusInProgress, 11, 1, 0), decideApply},
		{"equal elapsed", match(1, domain.StatusInProgress, 10, 0, 0), match(1, domain.StatusInProgress, 10, 1, 0), decideApply},
		{"older elapsed", match(1, domain.StatusInProgress, 10, 0, 0), match(1, domain.StatusInProgress, 9, 1, 0), decideStale},
		{"not started to kickoff", match(1, domain.StatusNotStarted, 0, 0, 0), match(1, domain.StatusInProgress, 0, 0, 0), decideApply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.cached, tt.incoming))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "stale", decideStale.String())
	assert.Equal(t, "decision(9)", decision(9).String())
}

func TestMerge_NilIncoming(t *testing.T) {
	cache := newMemCache()
	assert.Nil(t, NewMerger(cache).Merge(context.Background(), nil))
	assert.Equal(t, 0, cache.gets)
}

func TestMerge_FirstSightingPassthrough(t *testing.T) {
	incoming := match(10, domain.StatusNotStarted, 0, 0, 0)
	merged := NewMerger(newMemCache()).Merge(context.Background(), incoming)

	assert.Same(t, incoming, merged)
}

func TestMerge_TerminalProtection(t *testing.T) {
	statuses := []domain.Status{domain.StatusNotStarted, domain.StatusInProgress, domain.StatusFinished}
	for _, status := range statuses {
		for _, elapsed := range []int{0, 45, 90, 91, 120} {
			t.Run(fmt.Sprintf("%s/%d", status, elapsed), func(t *testing.T) {
				cache := newMemCache(match(30, domain.StatusFinished, 90, 2, 2))
				merged := NewMerger(cache).Merge(context.Background(), match(30, status, elapsed, 3, 2))
				assert.Nil(t, merged)
			})
		}
	}
}

func TestMerge_MonotonicAcceptance(t *testing.T) {
	liveStatuses := []domain.Status{domain.StatusNotStarted, domain.StatusInProgress}
	grid := []int{0, 1, 44, 45, 46, 90}

	for _, cachedStatus := range liveStatuses {
		for _, cachedElapsed := range grid {
			for _, incomingElapsed := range grid {
				cache := newMemCache(match(7, cachedStatus, cachedElapsed, 0, 0))
				incoming := match(7, domain.StatusInProgress, incomingElapsed, 1, 0)

				merged := NewMerger(cache).Merge(context.Background(), incoming)

				if incomingElapsed >= cachedElapsed {
					require.NotNil(t, merged, "cached %s@%d incoming @%d", cachedStatus, cachedElapsed, incomingElapsed)
					assert.Equal(t, incomingElapsed, merged.ElapsedMinutes)
				} else {
					assert.Nil(t, merged, "cached %s@%d incoming @%d", cachedStatus, cachedElapsed, incomingElapsed)
				}
			}
		}
	}
}

func TestMerge_OverlaysIncomingOntoCached(t *testing.T) {
	cached := match(20, domain.StatusInProgress, 10, 0, 0)
	incoming := match(20, domain.StatusFinished, 90, 2, 1)
	incoming.TeamA = "Internacional RS"

	cache := newMemCache(cached)
	merged := NewMerger(cache).Merge(context.Background(), incoming)

	require.NotNil(t, merged)
	assert.NotSame(t, incoming, merged)
	assert.Equal(t, incoming, merged)

	// neither input is touched
	assert.Equal(t, match(20, domain.StatusInProgress, 10, 0, 0), cache.entry(20))
	assert.Equal(t, "Internacional RS", incoming.TeamA)

	merged.MatchEndTime.Time = merged.MatchEndTime.Add(time.Hour)
	assert.NotEqual(t, merged.MatchEndTime.Time, incoming.MatchEndTime.Time)
}

func TestMerge_LookupFailureDegradesToFirstSighting(t *testing.T) {
	cache := newMemCache()
	cache.getFn = func(context.Context, int64) (*domain.ScoreEvent, error) {
		return nil, fmt.Errorf("game cache get: %w", domain.ErrBackendUnavailable)
	}

	incoming := match(40, domain.StatusInProgress, 60, 1, 1)
	assert.Same(t, incoming, NewMerger(cache).Merge(context.Background(), incoming))
}

func TestMerge_PanicReturnsIncoming(t *testing.T) {
	cache := newMemCache()
	cache.getFn = func(context.Context, int64) (*domain.ScoreEvent, error) {
		panic(errors.New("corrupted state"))
	}

	incoming := match(41, domain.StatusInProgress, 60, 1, 1)
	assert.Same(t, incoming, NewMerger(cache).Merge(context.Background(), incoming))
}
