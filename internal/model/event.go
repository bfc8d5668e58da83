package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind represents the category of a game event.
type EventKind string

const (
	// Scoring events. Made variants carry the shot's point value.
	EventFieldGoalMade    EventKind = "fg_made"
	EventFieldGoalMissed  EventKind = "fg_missed"
	EventThreePointMade   EventKind = "three_made"
	EventThreePointMissed EventKind = "three_missed"
	EventFreeThrowMade    EventKind = "ft_made"
	EventFreeThrowMissed  EventKind = "ft_missed"

	// Possession events.
	EventRebound  EventKind = "rebound"
	EventAssist   EventKind = "assist"
	EventSteal    EventKind = "steal"
	EventBlock    EventKind = "block"
	EventTurnover EventKind = "turnover"
	EventFoul     EventKind = "foul"

	// Game-flow events.
	EventSubstitution EventKind = "substitution"
	EventTimeout      EventKind = "timeout"
)

// Metadata keys with defined semantics. Everything else in Metadata is
// free-form and passed through untouched.
const (
	// MetaReboundType is "offensive" or "defensive" on rebound events.
	MetaReboundType = "rebound_type"
	// MetaDirection is "in" or "out" on substitution events.
	MetaDirection = "direction"
)

// IsMadeShot reports whether the kind is a made shot of any category.
func (k EventKind) IsMadeShot() bool {
	switch k {
	case EventFieldGoalMade, EventThreePointMade, EventFreeThrowMade:
		return true
	}
	return false
}

// IsMissedShot reports whether the kind is a missed shot of any category.
func (k EventKind) IsMissedShot() bool {
	switch k {
	case EventFieldGoalMissed, EventThreePointMissed, EventFreeThrowMissed:
		return true
	}
	return false
}

// IsShot reports whether the kind is a shot attempt, made or missed.
func (k EventKind) IsShot() bool {
	return k.IsMadeShot() || k.IsMissedShot()
}

// PointValue returns the default point value for a made shot kind.
// Returns 0 for non-scoring kinds.
func (k EventKind) PointValue() int {
	switch k {
	case EventFieldGoalMade:
		return 2
	case EventThreePointMade:
		return 3
	case EventFreeThrowMade:
		return 1
	}
	return 0
}

// Known reports whether the kind is one the aggregation engine understands.
// Unknown kinds are skipped during replay rather than aborting the pass.
func (k EventKind) Known() bool {
	switch k {
	case EventFieldGoalMade, EventFieldGoalMissed,
		EventThreePointMade, EventThreePointMissed,
		EventFreeThrowMade, EventFreeThrowMissed,
		EventRebound, EventAssist, EventSteal, EventBlock,
		EventTurnover, EventFoul, EventSubstitution, EventTimeout:
		return true
	}
	return false
}

// GameEvent is an immutable fact in a session's event log.
// Source of truth for every derived statistic. Never mutated or deleted;
// corrections are recorded as new compensating events.
type GameEvent struct {
	ID         uuid.UUID `json:"id"`
	SessionKey string    `json:"session_key"`
	// Seq is assigned by the recorder, monotonically increasing per session.
	// Replay order is by Seq, never by wall-clock time.
	Seq      int64     `json:"seq"`
	Kind     EventKind `json:"kind"`
	Value    int       `json:"value,omitempty"`
	Quarter  int       `json:"quarter"`
	Clock    string    `json:"clock"`
	Opponent bool      `json:"opponent"`
	// PlayerID references an own-roster player. Opponent players are never
	// enrolled as entities; they are tracked by jersey label only.
	PlayerID       *uuid.UUID     `json:"player_id,omitempty"`
	OpponentJersey *string        `json:"opponent_jersey,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SyncStatus     SyncStatus     `json:"sync_status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Points returns the points this event is worth: the recorded value when
// present, otherwise the kind's default point value.
func (e GameEvent) Points() int {
	if !e.Kind.IsMadeShot() {
		return 0
	}
	if e.Value > 0 {
		return e.Value
	}
	return e.Kind.PointValue()
}

// ReboundType returns the rebound type from metadata, or "" when absent
// or when the event is not a rebound.
func (e GameEvent) ReboundType() string {
	if e.Kind != EventRebound {
		return ""
	}
	if t, ok := e.Metadata[MetaReboundType].(string); ok {
		return t
	}
	return ""
}

// SubDirection returns "in" or "out" for substitution events, or "" when
// the direction is not recorded (older logs toggled implicitly).
func (e GameEvent) SubDirection() string {
	if e.Kind != EventSubstitution {
		return ""
	}
	if d, ok := e.Metadata[MetaDirection].(string); ok {
		return d
	}
	return ""
}
