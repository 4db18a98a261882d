package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

// sharedReadTimeout bounds a cache read shared by concurrent callers; it
// outlives any single caller's context.
const sharedReadTimeout = 5 * time.Second

// Games answers point queries against the game cache and accepts direct
// writes from operators. Writes bypass merge and broadcast.
type Games struct {
	cache domain.GameCache
	ttl   time.Duration
	reads singleflight.Group
}

func NewGames(cache domain.GameCache, ttl time.Duration) *Games {
	return &Games{cache: cache, ttl: ttl}
}

// Get returns the cached state of a match. Concurrent reads of the same id
// share one cache round trip.
func (g *Games) Get(ctx context.Context, id int64) (*domain.ScoreEvent, error) {
	if id <= 0 {
		return nil, &domain.ValidationError{ID: id, Violations: []string{"id must be positive"}}
	}

	// a caller that leaves early must not fail the others sharing its read
	shared := context.WithoutCancel(ctx)
	result := g.reads.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		readCtx, cancel := context.WithTimeout(shared, sharedReadTimeout)
		defer cancel()
		return g.cache.Get(readCtx, id)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-result:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("game %d lookup failed: %w", id, res.Err)
	}

	event, _ := res.Val.(*domain.ScoreEvent)
	if event == nil {
		return nil, domain.ErrGameNotFound
	}
	return event.Clone(), nil
}

// Save validates event and stores it as the current state of its match.
func (g *Games) Save(ctx context.Context, event *domain.ScoreEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Status == domain.StatusDeleted {
		return &domain.ValidationError{ID: event.ID, Violations: []string{"status DELETED cannot be stored"}}
	}

	if err := g.cache.Put(ctx, event, g.ttl); err != nil {
		return fmt.Errorf("game %d save failed: %w", event.ID, err)
	}
	return nil
}
