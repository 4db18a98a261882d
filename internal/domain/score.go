package domain

import (
	"strings"
)

// Status is the lifecycle state reported for a match.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	// StatusDeleted is a control signal: it removes the cached entry and is never persisted.
	StatusDeleted Status = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusFinished, StatusDeleted:
		return true
	default:
		return false
	}
}

// ScoreEvent is one reported state of a match at a point in time.
// Values are treated as immutable once decoded; the cached copy keyed by ID
// is owned by the GameCache.
type ScoreEvent struct {
	ID             int64      `json:"id"`
	TeamA          string     `json:"teamA"`
	TeamB          string     `json:"teamB"`
	ScoreA         int        `json:"scoreA"`
	ScoreB         int        `json:"scoreB"`
	Status         Status     `json:"status"`
	ElapsedMinutes int        `json:"elapsedMinutes"`
	MatchStartTime Timestamp  `json:"matchStartTime"`
	MatchEndTime   *Timestamp `json:"matchEndTime,omitempty"`
}

// Clone returns a deep copy of e.
func (e *ScoreEvent) Clone() *ScoreEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.MatchEndTime != nil {
		end := *e.MatchEndTime
		c.MatchEndTime = &end
	}
	return &c
}

// IsTerminal reports whether the match can no longer change.
func (e *ScoreEvent) IsTerminal() bool {
	return e != nil && e.Status == StatusFinished
}

// Validate checks the field rules of a score event and returns a
// *ValidationError listing every violation, or nil.
func (e *ScoreEvent) Validate() error {
	if e == nil {
		return &ValidationError{Violations: []string{"event is required"}}
	}

	var violations []string
	if e.ID <= 0 {
		violations = append(violations, "id is mandatory")
	}
	if strings.TrimSpace(e.TeamA) == "" {
		violations = append(violations, "teamA is mandatory")
	}
	if strings.TrimSpace(e.TeamB) == "" {
		violations = append(violations, "teamB is mandatory")
	}
	if e.ScoreA < 0 {
		violations = append(violations, "scoreA cannot be negative")
	}
	if e.ScoreB < 0 {
		violations = append(violations, "scoreB cannot be negative")
	}
	if !e.Status.Valid() {
		violations = append(violations, "status must be one of NOT_STARTED, IN_PROGRESS, FINISHED, DELETED")
	}
	if e.ElapsedMinutes < 0 {
		violations = append(violations, "elapsedMinutes cannot be negative")
	}
	if e.MatchStartTime.IsZero() {
		violations = append(violations, "matchStartTime is mandatory")
	}
	// DELETED may carry the end time of the record it removes.
	if e.MatchEndTime != nil && (e.Status == StatusNotStarted || e.Status == StatusInProgress) {
		violations = append(violations, "matchEndTime is only allowed when status is FINISHED")
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{ID: e.ID, Violations: violations}
}
