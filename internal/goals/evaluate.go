package goals

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/stats"
)

// SessionStats pairs one session's key with its replayed totals.
// Evaluation windows take these ordered most recent first.
type SessionStats struct {
	SessionKey string
	Totals     *stats.Totals
}

// ProgressStore persists append-only GoalProgress snapshots and serves the
// immediately preceding one for transition detection.
type ProgressStore interface {
	LatestProgress(ctx context.Context, goalID uuid.UUID) (*model.GoalProgress, error)
	AppendProgress(ctx context.Context, p model.GoalProgress) error
}

// Classify maps an actual value against a goal's target and operator.
//
//	gte: on_track when actual >= target; at_risk within 10% below.
//	lte: on_track when actual <= target; at_risk within 10% above.
//	eq:  on_track within 5% of target; at_risk within 15%.
func Classify(actual, target float64, op model.GoalOperator) model.GoalStatus {
	switch op {
	case model.OpGTE:
		if actual >= target {
			return model.StatusOnTrack
		}
		if actual >= target*0.9 {
			return model.StatusAtRisk
		}
		return model.StatusOffTrack

	case model.OpLTE:
		if actual <= target {
			return model.StatusOnTrack
		}
		if actual <= target*1.1 {
			return model.StatusAtRisk
		}
		return model.StatusOffTrack

	case model.OpEQ:
		diff := math.Abs(actual - target)
		band := math.Abs(target)
		if diff <= band*0.05 {
			return model.StatusOnTrack
		}
		if diff <= band*0.15 {
			return model.StatusAtRisk
		}
		return model.StatusOffTrack
	}
	return model.StatusOffTrack
}

// Evaluator computes and persists goal progress snapshots.
type Evaluator struct {
	store  ProgressStore
	now    func() time.Time
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. now may be nil (defaults to UTC wall
// clock); tests inject a fixed clock.
func NewEvaluator(store ProgressStore, now func() time.Time, logger *slog.Logger) *Evaluator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Evaluator{store: store, now: now, logger: logger}
}

// Evaluate computes one goal's actual value over its window, persists an
// immutable GoalProgress snapshot, and reports whether the status changed
// relative to the immediately preceding snapshot. A first-ever snapshot is
// not a transition: there is nothing to compare against.
//
// Returns ErrNotComputable (wrapped) when the window has no computable
// value; no snapshot is persisted in that case.
func (ev *Evaluator) Evaluate(ctx context.Context, goal model.Goal, metric model.Metric, recent []SessionStats) (model.GoalProgress, bool, error) {
	actual, err := windowValue(goal, metric, recent)
	if err != nil {
		return model.GoalProgress{}, false, fmt.Errorf("goals: evaluate %s: %w", goal.ID, err)
	}

	sessionKey := ""
	if len(recent) > 0 {
		sessionKey = recent[0].SessionKey
	}

	progress := model.GoalProgress{
		ID:          uuid.New(),
		GoalID:      goal.ID,
		SessionKey:  sessionKey,
		Actual:      actual,
		Target:      goal.Target,
		Delta:       actual - goal.Target,
		Status:      Classify(actual, goal.Target, goal.Operator),
		EvaluatedAt: ev.now(),
	}

	prev, err := ev.store.LatestProgress(ctx, goal.ID)
	if err != nil {
		return model.GoalProgress{}, false, fmt.Errorf("goals: latest progress for %s: %w", goal.ID, err)
	}

	if err := ev.store.AppendProgress(ctx, progress); err != nil {
		return model.GoalProgress{}, false, fmt.Errorf("goals: append progress for %s: %w", goal.ID, err)
	}

	transition := prev != nil && prev.Status != progress.Status
	if transition {
		// Trigger point for downstream notification; delivery itself is an
		// external collaborator.
		ev.logger.Info("goals: status transition",
			"goal_id", goal.ID,
			"from", prev.Status,
			"to", progress.Status,
			"actual", progress.Actual,
			"target", progress.Target,
		)
	}
	return progress, transition, nil
}
