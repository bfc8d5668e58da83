package model

import (
	"time"

	"github.com/google/uuid"
)

// MetricKind selects how a metric value is computed from a session's
// aggregated stats.
type MetricKind string

const (
	// MetricSum is the running total of one event kind.
	MetricSum MetricKind = "sum"
	// MetricAverage is the mean recorded value of one event kind.
	MetricAverage MetricKind = "average"
	// MetricPercentage is made / (made + missed) for a shot category,
	// expressed 0-100. Zero when there are no attempts.
	MetricPercentage MetricKind = "percentage"
	// MetricRatio is the count of one kind divided by the count of another.
	MetricRatio MetricKind = "ratio"
	// MetricSecondChancePoints is the windowed second-chance scan.
	MetricSecondChancePoints MetricKind = "second_chance_points"
	// MetricReboundSplit is the offensive share of total rebounds, 0-100.
	MetricReboundSplit MetricKind = "rebound_split"
)

// Metric is a named, versioned definition of how to compute a statistic
// from event kinds. Metrics are read-only configuration shared by the
// aggregation and goal evaluation engines.
type Metric struct {
	ID      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	Version int        `json:"version"`
	Kind    MetricKind `json:"kind"`

	// EventKind is the target kind for sum and average metrics.
	EventKind EventKind `json:"event_kind,omitempty"`
	// MadeKind/MissedKind define the category for percentage metrics.
	MadeKind   EventKind `json:"made_kind,omitempty"`
	MissedKind EventKind `json:"missed_kind,omitempty"`
	// NumerKind/DenomKind define ratio metrics.
	NumerKind EventKind `json:"numer_kind,omitempty"`
	DenomKind EventKind `json:"denom_kind,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GoalOperator is the comparison direction for a goal target.
type GoalOperator string

const (
	OpGTE GoalOperator = "gte"
	OpLTE GoalOperator = "lte"
	OpEQ  GoalOperator = "eq"
)

// GoalWindow selects the evaluation window for a goal.
type GoalWindow string

const (
	// WindowPerGame evaluates against the current session only.
	WindowPerGame GoalWindow = "per_game"
	// WindowRolling evaluates an unweighted mean over the last N sessions.
	WindowRolling GoalWindow = "rolling"
	// WindowSeason evaluates over every session on record.
	WindowSeason GoalWindow = "season"
)

// Goal binds a target value and comparison operator to one metric.
type Goal struct {
	ID       uuid.UUID    `json:"id"`
	MetricID uuid.UUID    `json:"metric_id"`
	Target   float64      `json:"target"`
	Operator GoalOperator `json:"operator"`
	Window   GoalWindow   `json:"window"`
	// WindowSize is N for rolling windows; ignored otherwise.
	WindowSize int       `json:"window_size,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// GoalStatus classifies actual-vs-target progress.
type GoalStatus string

const (
	StatusOnTrack  GoalStatus = "on_track"
	StatusAtRisk   GoalStatus = "at_risk"
	StatusOffTrack GoalStatus = "off_track"
)

// GoalProgress is one computed snapshot per goal per evaluation.
// Append-only history, never overwritten; comparing a snapshot's status to
// the immediately preceding one detects status transitions.
type GoalProgress struct {
	ID          uuid.UUID  `json:"id"`
	GoalID      uuid.UUID  `json:"goal_id"`
	SessionKey  string     `json:"session_key"`
	Actual      float64    `json:"actual"`
	Target      float64    `json:"target"`
	Delta       float64    `json:"delta"`
	Status      GoalStatus `json:"status"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}
