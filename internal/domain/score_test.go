package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

var kickoff = time.Date(2025, 3, 9, 16, 0, 0, 0, time.UTC)

func validEvent() *domain.ScoreEvent {
	return &domain.ScoreEvent{
		ID:             10,
		TeamA:          "Flamengo",
		TeamB:          "Palmeiras",
		ScoreA:         1,
		ScoreB:         0,
		Status:         domain.StatusInProgress,
		ElapsedMinutes: 23,
		MatchStartTime: domain.NewTimestamp(kickoff),
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validEvent().Validate())
}

func TestValidate_NilEvent(t *testing.T) {
	var e *domain.ScoreEvent
	err := e.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	e := &domain.ScoreEvent{
		ID:             0,
		TeamA:          "  ",
		ScoreA:         -1,
		ScoreB:         -2,
		Status:         "HALF_TIME",
		ElapsedMinutes: -5,
	}

	err := e.Validate()
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 8)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestValidate_EndTimeRules(t *testing.T) {
	end := domain.TimestampPtr(kickoff.Add(95 * time.Minute))

	tests := []struct {
		status  domain.Status
		wantErr bool
	}{
		{domain.StatusNotStarted, true},
		{domain.StatusInProgress, true},
		{domain.StatusFinished, false},
		{domain.StatusDeleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			e := validEvent()
			e.Status = tt.status
			e.MatchEndTime = end
			if tt.wantErr {
				assert.ErrorIs(t, e.Validate(), domain.ErrInvalidEvent)
			} else {
				assert.NoError(t, e.Validate())
			}
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	e := validEvent()
	e.Status = domain.StatusFinished
	e.MatchEndTime = domain.TimestampPtr(kickoff.Add(time.Hour))

	c := e.Clone()
	require.Equal(t, e, c)

	c.MatchEndTime.Time = c.MatchEndTime.Add(time.Minute)
	c.ScoreA = 7
	assert.Equal(t, 1, e.ScoreA)
	assert.Equal(t, kickoff.Add(time.Hour), e.MatchEndTime.Time)
}

func TestScoreEvent_JSONWireFormat(t *testing.T) {
	payload := `{"id":20,"teamA":"Santos","teamB":"Gremio","scoreA":2,"scoreB":2,` +
		`"status":"FINISHED","elapsedMinutes":90,` +
		`"matchStartTime":"2025-03-09T16:00:00","matchEndTime":"2025-03-09T17:52:00"}`

	var e domain.ScoreEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &e))

	assert.Equal(t, int64(20), e.ID)
	assert.Equal(t, domain.StatusFinished, e.Status)
	assert.Equal(t, kickoff, e.MatchStartTime.Time)
	require.NotNil(t, e.MatchEndTime)
	assert.Equal(t, kickoff.Add(112*time.Minute), e.MatchEndTime.Time)

	out, err := json.Marshal(&e)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestScoreEvent_OmitsEndTimeWhileLive(t *testing.T) {
	out, err := json.Marshal(validEvent())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "matchEndTime")
	assert.Contains(t, string(out), `"matchStartTime":"2025-03-09T16:00:00"`)
}

func TestTimestamp_AcceptsRFC3339(t *testing.T) {
	var ts domain.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-09T16:00:00Z"`), &ts))
	assert.True(t, ts.Equal(kickoff))
}

func TestTimestamp_RejectsGarbage(t *testing.T) {
	var ts domain.Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`1741536000`), &ts))
}

func TestTimestamp_NullIsZero(t *testing.T) {
	var e domain.ScoreEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"matchStartTime":null}`), &e))
	assert.True(t, e.MatchStartTime.IsZero())
	assert.ErrorIs(t, e.Validate(), domain.ErrInvalidEvent)
}
