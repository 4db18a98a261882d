package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

// decision is the outcome of reconciling an incoming event with the cached one.
type decision int

const (
	decideFirstSighting decision = iota // nothing cached: accept incoming as-is
	decideTerminal                      // cached match already finished: drop
	decideApply                         // incoming is at least as recent: overlay onto cached
	decideStale                         // incoming is behind the cached clock: drop
)

func (d decision) String() string {
	switch d {
	case decideFirstSighting:
		return "first_sighting"
	case decideTerminal:
		return "terminal"
	case decideApply:
		return "apply"
	case decideStale:
		return "stale"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// decide is the merge decision table. Rows are evaluated top to bottom.
//
//	cached      | cached status | elapsed (incoming vs cached) | decision
//	------------+---------------+------------------------------+----------------
//	absent      | -             | -                            | first sighting
//	present     | FINISHED      | any                          | terminal
//	present     | other         | incoming >= cached           | apply
//	present     | other         | incoming <  cached           | stale
func decide(cached, incoming *domain.ScoreEvent) decision {
	switch {
	case cached == nil:
		return decideFirstSighting
	case cached.Status == domain.StatusFinished:
		return decideTerminal
	case incoming.ElapsedMinutes >= cached.ElapsedMinutes:
		return decideApply
	default:
		return decideStale
	}
}

// Merger reconciles incoming score events against the cached match state.
type Merger struct {
	cache domain.GameCache
}

func NewMerger(cache domain.GameCache) *Merger {
	return &Merger{cache: cache}
}

// Merge returns the state that should replace the cached one, or nil when the
// incoming event must be ignored. It never mutates incoming or the cached value.
//
// A failed cache lookup degrades to a first sighting, and a panic while
// merging yields incoming unchanged.
func (m *Merger) Merge(ctx context.Context, incoming *domain.ScoreEvent) (merged *domain.ScoreEvent) {
	if incoming == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Merge panicked, passing incoming event through",
				"game_id", incoming.ID, "panic", r)
			merged = incoming
		}
	}()

	cached, err := m.cache.Get(ctx, incoming.ID)
	if err != nil {
		slog.WarnContext(ctx, "Cache lookup failed during merge, treating as first sighting",
			"game_id", incoming.ID, "error", err)
		cached = nil
	}

	d := decide(cached, incoming)
	switch d {
	case decideFirstSighting:
		return incoming
	case decideApply:
		return overlay(cached, incoming)
	default:
		slog.DebugContext(ctx, "Dropping score event",
			"game_id", incoming.ID,
			"reason", d.String(),
			"cached_status", cached.Status,
			"cached_elapsed", cached.ElapsedMinutes,
			"incoming_elapsed", incoming.ElapsedMinutes)
		return nil
	}
}

// overlay copies the mutable match fields of incoming onto a copy of cached.
func overlay(cached, incoming *domain.ScoreEvent) *domain.ScoreEvent {
	out := cached.Clone()
	src := incoming.Clone()

	out.TeamA = src.TeamA
	out.TeamB = src.TeamB
	out.ScoreA = src.ScoreA
	out.ScoreB = src.ScoreB
	out.Status = src.Status
	out.ElapsedMinutes = src.ElapsedMinutes
	out.MatchStartTime = src.MatchStartTime
	out.MatchEndTime = src.MatchEndTime
	return out
}
