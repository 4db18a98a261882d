package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

const regulationMinutes = 90

// lifecycleGenerator builds synthetic match timelines from a seeded faker so
// a given seed always replays the same matches.
type lifecycleGenerator struct {
	faker    *gofakeit.Faker
	maxGoals int
	start    time.Time
}

func newLifecycleGenerator(seed uint64, maxGoals int, start time.Time) *lifecycleGenerator {
	return &lifecycleGenerator{
		faker:    gofakeit.New(seed),
		maxGoals: min(max(maxGoals, 0), regulationMinutes-1),
		start:    start,
	}
}

// Match returns the ordered events for one match: announcement, kickoff at
// minute 0, one event per goal, and the final whistle. withDelete appends a
// DELETED signal after the final event.
func (g *lifecycleGenerator) Match(id int64, withDelete bool) []*domain.ScoreEvent {
	base := &domain.ScoreEvent{
		ID:             id,
		TeamA:          g.teamName(),
		TeamB:          g.teamName(),
		Status:         domain.StatusNotStarted,
		MatchStartTime: domain.NewTimestamp(g.start),
	}
	for base.TeamB == base.TeamA {
		base.TeamB = g.teamName()
	}

	events := []*domain.ScoreEvent{base.Clone()}

	current := base.Clone()
	current.Status = domain.StatusInProgress
	events = append(events, current.Clone())

	for _, minute := range g.goalMinutes() {
		if g.faker.Bool() {
			current.ScoreA++
		} else {
			current.ScoreB++
		}
		current.ElapsedMinutes = minute
		events = append(events, current.Clone())
	}

	final := current.Clone()
	final.Status = domain.StatusFinished
	final.ElapsedMinutes = regulationMinutes
	final.MatchEndTime = domain.TimestampPtr(g.start.Add(regulationMinutes * time.Minute))
	events = append(events, final)

	if withDelete {
		deleted := final.Clone()
		deleted.Status = domain.StatusDeleted
		events = append(events, deleted)
	}
	return events
}

func (g *lifecycleGenerator) teamName() string {
	return fmt.Sprintf("%s %s", g.faker.City(), g.faker.RandomString([]string{"FC", "EC", "AC", "United", "Athletic"}))
}

// goalMinutes returns ascending, distinct minutes within regulation time.
func (g *lifecycleGenerator) goalMinutes() []int {
	n := g.faker.IntRange(0, g.maxGoals)
	seen := make(map[int]struct{}, n)
	minutes := make([]int, 0, n)
	for len(minutes) < n {
		m := g.faker.IntRange(1, regulationMinutes-1)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		minutes = append(minutes, m)
	}
	slices.Sort(minutes)
	return minutes
}
