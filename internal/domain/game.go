package domain

import (
	"context"
	"time"
)

// GameCache persists the latest known state per match.
//
// A nil event or a non-positive id is a no-op success. Get returns (nil, nil)
// when nothing is cached. Transient backend problems surface as
// ErrBackendUnavailable.
type GameCache interface {
	Put(ctx context.Context, event *ScoreEvent, ttl time.Duration) error
	Get(ctx context.Context, id int64) (*ScoreEvent, error)
	Delete(ctx context.Context, id int64) error
}

// Broadcaster fans a reconciled event out to the subscribers of one channel.
// Implementations must not block on subscriber I/O.
type Broadcaster interface {
	Broadcast(channel Channel, event *ScoreEvent) error
}
