package app

import (
	"context"
	"sync"
	"time"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

// memCache is an in-memory domain.GameCache. The *Fn hooks override the
// default map behaviour when set.
type memCache struct {
	mu      sync.Mutex
	entries map[int64]*domain.ScoreEvent
	puts    int
	deletes int
	gets    int
	lastTTL time.Duration

	getFn    func(ctx context.Context, id int64) (*domain.ScoreEvent, error)
	putFn    func(ctx context.Context, event *domain.ScoreEvent, ttl time.Duration) error
	deleteFn func(ctx context.Context, id int64) error
}

var _ domain.GameCache = (*memCache)(nil)

func newMemCache(seed ...*domain.ScoreEvent) *memCache {
	c := &memCache{entries: make(map[int64]*domain.ScoreEvent)}
	for _, e := range seed {
		c.entries[e.ID] = e.Clone()
	}
	return c
}

func (c *memCache) Put(ctx context.Context, event *domain.ScoreEvent, ttl time.Duration) error {
	c.mu.Lock()
	c.puts++
	c.lastTTL = ttl
	c.mu.Unlock()
	if c.putFn != nil {
		return c.putFn(ctx, event, ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[event.ID] = event.Clone()
	return nil
}

func (c *memCache) Get(ctx context.Context, id int64) (*domain.ScoreEvent, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	if c.getFn != nil {
		return c.getFn(ctx, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id].Clone(), nil
}

func (c *memCache) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	if c.deleteFn != nil {
		return c.deleteFn(ctx, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *memCache) entry(id int64) *domain.ScoreEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id].Clone()
}

type broadcastCall struct {
	Channel domain.Channel
	Event   *domain.ScoreEvent
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (b *recordingBroadcaster) Broadcast(channel domain.Channel, event *domain.ScoreEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{Channel: channel, Event: event.Clone()})
	return b.err
}

func (b *recordingBroadcaster) recorded() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall(nil), b.calls...)
}

var kickoffTime = time.Date(2025, 3, 9, 16, 0, 0, 0, time.UTC)

func match(id int64, status domain.Status, elapsed, scoreA, scoreB int) *domain.ScoreEvent {
	e := &domain.ScoreEvent{
		ID:             id,
		TeamA:          "Internacional",
		TeamB:          "Atletico Mineiro",
		ScoreA:         scoreA,
		ScoreB:         scoreB,
		Status:         status,
		ElapsedMinutes: elapsed,
		MatchStartTime: domain.NewTimestamp(kickoffTime),
	}
	if status == domain.StatusFinished {
		e.MatchEndTime = domain.TimestampPtr(kickoffTime.Add(time.Duration(elapsed+20) * time.Minute))
	}
	return e
}
