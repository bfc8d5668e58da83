// Package model defines the core domain types for Courtside.
//
// Types use strong typing (UUIDs, time.Time, enums) and avoid interface{}
// wherever possible. GameEvent is the append-only source of truth; every
// statistic is derived by replaying a session's event log in sequence order.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the per-session (and per-event) local-vs-remote consistency
// state machine: pending → syncing → synced, or syncing → failed → pending.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// GameState is the current snapshot of an in-progress game.
// It is derived convenience state, not a source of truth: scores are also
// reconstructable from the event log.
type GameState struct {
	Quarter     int    `json:"quarter"`
	Clock       string `json:"clock"`
	ScoreOwn    int    `json:"score_own"`
	ScoreOpp    int    `json:"score_opp"`
	TimeoutsOwn int    `json:"timeouts_own"`
	TimeoutsOpp int    `json:"timeouts_opp"`
}

// StatePatch is a partial GameState update. Nil fields are left unchanged.
type StatePatch struct {
	Quarter     *int    `json:"quarter,omitempty"`
	Clock       *string `json:"clock,omitempty"`
	ScoreOwn    *int    `json:"score_own,omitempty"`
	ScoreOpp    *int    `json:"score_opp,omitempty"`
	TimeoutsOwn *int    `json:"timeouts_own,omitempty"`
	TimeoutsOpp *int    `json:"timeouts_opp,omitempty"`
}

// Apply merges the patch into the state.
func (p StatePatch) Apply(s *GameState) {
	if p.Quarter != nil {
		s.Quarter = *p.Quarter
	}
	if p.Clock != nil {
		s.Clock = *p.Clock
	}
	if p.ScoreOwn != nil {
		s.ScoreOwn = *p.ScoreOwn
	}
	if p.ScoreOpp != nil {
		s.ScoreOpp = *p.ScoreOpp
	}
	if p.TimeoutsOwn != nil {
		s.TimeoutsOwn = *p.TimeoutsOwn
	}
	if p.TimeoutsOpp != nil {
		s.TimeoutsOpp = *p.TimeoutsOpp
	}
}

// GameSession identifies one tracked fixture instance.
// At most one active session exists per fixture; resuming reuses the
// existing SessionKey so the remote upsert never creates a duplicate.
type GameSession struct {
	// SessionKey is the stable natural key used for the remote upsert.
	SessionKey     string     `json:"session_key"`
	FixtureID      string     `json:"fixture_id"`
	ExternalGameID *string    `json:"external_game_id,omitempty"`
	State          GameState  `json:"state"`
	Active         bool       `json:"active"`
	SyncStatus     SyncStatus `json:"sync_status"`
	RetryCount     int        `json:"retry_count"`
	// LastSeq is the highest sequence number assigned so far; the recorder
	// assigns LastSeq+1 to the next event.
	LastSeq      int64     `json:"last_seq"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// SessionDocSchemaVersion is the current persisted document schema.
// Version 1 predates retry counts and opponent jersey labels; the queue
// migrates v1 documents on load.
const SessionDocSchemaVersion = 2

// SessionDocument is the unit the local durable queue persists: one session
// plus its full ordered event list, under a schema version so older shapes
// can be migrated on load.
type SessionDocument struct {
	SchemaVersion int         `json:"schema_version"`
	Session       GameSession `json:"session"`
	Events        []GameEvent `json:"events"`
}

// PendingEvents returns the events not yet confirmed synced, in seq order.
func (d *SessionDocument) PendingEvents() []GameEvent {
	var out []GameEvent
	for _, e := range d.Events {
		if e.SyncStatus != SyncSynced {
			out = append(out, e)
		}
	}
	return out
}

// Player is own-roster metadata used by the reporter. Opponent players are
// never modelled as entities.
type Player struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Jersey string    `json:"jersey"`
}
