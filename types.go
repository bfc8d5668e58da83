package courtside

import (
	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/recorder"
	"github.com/hoopdeck/courtside/internal/report"
	"github.com/hoopdeck/courtside/internal/stats"
)

// Aliases for the core domain types, so embedding hosts never import
// internal packages. These are the same types the App methods accept and
// return, not converted copies.

type (
	// GameSession is one tracked live-game instance.
	GameSession = model.GameSession
	// GameEvent is one immutable, sequenced fact about game play.
	GameEvent = model.GameEvent
	// GameState is the session's current snapshot (quarter, clock, scores).
	GameState = model.GameState
	// StatePatch is a partial GameState merge.
	StatePatch = model.StatePatch
	// Player is a roster entry used when building reports.
	Player = model.Player
	// EventKind discriminates event types.
	EventKind = model.EventKind
	// SyncStatus is a session's local-vs-remote consistency state.
	SyncStatus = model.SyncStatus

	// Metric is a named, versioned statistic definition.
	Metric = model.Metric
	// Goal binds a target and operator to one metric over a window.
	Goal = model.Goal
	// GoalProgress is one append-only evaluation snapshot.
	GoalProgress = model.GoalProgress
	// GoalStatus classifies actual-vs-target progress.
	GoalStatus = model.GoalStatus

	// EventInput carries the caller-supplied fields of a new event.
	EventInput = recorder.EventInput
	// Totals is a session's fully aggregated stat lines.
	Totals = stats.Totals
	// GameReport is the post-game analysis document.
	GameReport = report.GameReport
)

// Event kinds. Made shot variants carry the shot's point value.
const (
	EventFieldGoalMade    = model.EventFieldGoalMade
	EventFieldGoalMissed  = model.EventFieldGoalMissed
	EventThreePointMade   = model.EventThreePointMade
	EventThreePointMissed = model.EventThreePointMissed
	EventFreeThrowMade    = model.EventFreeThrowMade
	EventFreeThrowMissed  = model.EventFreeThrowMissed
	EventRebound          = model.EventRebound
	EventAssist           = model.EventAssist
	EventSteal            = model.EventSteal
	EventBlock            = model.EventBlock
	EventTurnover         = model.EventTurnover
	EventFoul             = model.EventFoul
	EventSubstitution     = model.EventSubstitution
	EventTimeout          = model.EventTimeout
)

// Metadata keys with defined semantics.
const (
	MetaReboundType = model.MetaReboundType
	MetaDirection   = model.MetaDirection
)

// Sync statuses.
const (
	SyncPending = model.SyncPending
	SyncSyncing = model.SyncSyncing
	SyncSynced  = model.SyncSynced
	SyncFailed  = model.SyncFailed
)

// Goal statuses.
const (
	StatusOnTrack  = model.StatusOnTrack
	StatusAtRisk   = model.StatusAtRisk
	StatusOffTrack = model.StatusOffTrack
)
