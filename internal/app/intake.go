package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

// Intake runs one score event through merge, cache write, classification
// and broadcast. A non-nil error from Handle is always permanent: the caller
// dead-letters the message and must not redeliver it.
type Intake struct {
	cache       domain.GameCache
	merger      *Merger
	broadcaster domain.Broadcaster
	ttl         time.Duration
	clock       clockwork.Clock
	metrics     *metrics.IntakeMetrics
}

// NewIntake wires the pipeline. ttl is applied to every cache write; m may be nil.
func NewIntake(cache domain.GameCache, broadcaster domain.Broadcaster, ttl time.Duration, clock clockwork.Clock, m *metrics.IntakeMetrics) *Intake {
	return &Intake{
		cache:       cache,
		merger:      NewMerger(cache),
		broadcaster: broadcaster,
		ttl:         ttl,
		clock:       clock,
		metrics:     m,
	}
}

func (i *Intake) Handle(ctx context.Context, event *domain.ScoreEvent) error {
	start := i.clock.Now()
	result, err := i.handle(ctx, event)
	if i.metrics != nil {
		i.metrics.EventsProcessed.WithLabelValues(result).Inc()
		i.metrics.ProcessingDuration.Observe(i.clock.Since(start).Seconds())
	}
	return err
}

func (i *Intake) handle(ctx context.Context, event *domain.ScoreEvent) (string, error) {
	if event == nil {
		return metrics.ResultRejected, fmt.Errorf("%w: empty message", domain.ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		slog.WarnContext(ctx, "Rejecting invalid score event", "game_id", event.ID, "error", err)
		return metrics.ResultRejected, err
	}

	if event.Status == domain.StatusDeleted {
		if err := i.cache.Delete(ctx, event.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to remove deleted game from cache", "game_id", event.ID, "error", err)
		} else {
			slog.InfoContext(ctx, "Removed deleted game from cache", "game_id", event.ID)
		}
		// announced even when the cache removal failed
		i.announce(ctx, domain.ChannelDeleted, event)
		return metrics.ResultDeleted, nil
	}

	merged := i.merger.Merge(ctx, event)
	if merged == nil {
		return metrics.ResultDropped, nil
	}

	if err := i.cache.Put(ctx, merged, i.ttl); err != nil {
		slog.ErrorContext(ctx, "Failed to cache reconciled game, broadcasting anyway", "game_id", merged.ID, "error", err)
	}

	channel := domain.Classify(merged)
	i.announce(ctx, channel, merged)

	slog.DebugContext(ctx, "Score event processed",
		"game_id", merged.ID, "channel", channel, "status", merged.Status, "elapsed", merged.ElapsedMinutes)
	return metrics.ResultBroadcast, nil
}

func (i *Intake) announce(ctx context.Context, channel domain.Channel, event *domain.ScoreEvent) {
	if i.metrics != nil {
		i.metrics.EventsByChannel.WithLabelValues(channel.String()).Inc()
	}
	if err := i.broadcaster.Broadcast(channel, event); err != nil {
		slog.ErrorContext(ctx, "Failed to broadcast score event", "game_id", event.ID, "channel", channel, "error", err)
	}
}
