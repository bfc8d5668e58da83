package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hoopdeck/courtside/internal/model"
)

// ErrMetricNotFound is returned when no metric definition exists for an ID.
var ErrMetricNotFound = errors.New("remote: metric not found")

// ListMetrics returns all metric definitions. Metric definitions are
// read-only configuration; this layer never creates or mutates them.
func (s *Store) ListMetrics(ctx context.Context) ([]model.Metric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, version, kind, event_kind, made_kind, missed_kind, numer_kind, denom_kind, created_at
		 FROM metrics ORDER BY name, version`,
	)
	if err != nil {
		return nil, fmt.Errorf("remote: list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetMetric retrieves one metric definition by ID.
func (s *Store) GetMetric(ctx context.Context, id uuid.UUID) (model.Metric, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, version, kind, event_kind, made_kind, missed_kind, numer_kind, denom_kind, created_at
		 FROM metrics WHERE id = $1`, id,
	)
	m, err := scanMetric(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Metric{}, fmt.Errorf("%w: %s", ErrMetricNotFound, id)
		}
		return model.Metric{}, err
	}
	return m, nil
}

func scanMetric(row pgx.Row) (model.Metric, error) {
	var m model.Metric
	if err := row.Scan(
		&m.ID, &m.Name, &m.Version, &m.Kind,
		&m.EventKind, &m.MadeKind, &m.MissedKind,
		&m.NumerKind, &m.DenomKind, &m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Metric{}, err
		}
		return model.Metric{}, fmt.Errorf("remote: scan metric: %w", err)
	}
	return m, nil
}

// ListActiveGoals returns every goal currently subject to evaluation.
func (s *Store) ListActiveGoals(ctx context.Context) ([]model.Goal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, metric_id, target, operator, goal_window, window_size, active, created_at
		 FROM goals WHERE active = TRUE
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("remote: list active goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(
			&g.ID, &g.MetricID, &g.Target, &g.Operator,
			&g.Window, &g.WindowSize, &g.Active, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("remote: scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// CreateGoal inserts a goal definition.
func (s *Store) CreateGoal(ctx context.Context, goal model.Goal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goals (id, metric_id, target, operator, goal_window, window_size, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		goal.ID, goal.MetricID, goal.Target, string(goal.Operator),
		string(goal.Window), goal.WindowSize, goal.Active, goal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("remote: create goal: %w", err)
	}
	return nil
}

// LatestProgress returns the most recent progress snapshot for a goal, or
// nil when the goal has never been evaluated.
func (s *Store) LatestProgress(ctx context.Context, goalID uuid.UUID) (*model.GoalProgress, error) {
	var p model.GoalProgress
	err := s.pool.QueryRow(ctx,
		`SELECT id, goal_id, session_key, actual, target, delta, status, evaluated_at
		 FROM goal_progress WHERE goal_id = $1
		 ORDER BY evaluated_at DESC, id DESC
		 LIMIT 1`, goalID,
	).Scan(
		&p.ID, &p.GoalID, &p.SessionKey, &p.Actual,
		&p.Target, &p.Delta, &p.Status, &p.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("remote: latest progress: %w", err)
	}
	return &p, nil
}

// AppendProgress records one progress snapshot. History is append-only;
// snapshots are never updated or deleted.
func (s *Store) AppendProgress(ctx context.Context, p model.GoalProgress) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goal_progress (id, goal_id, session_key, actual, target, delta, status, evaluated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.GoalID, p.SessionKey, p.Actual, p.Target, p.Delta, string(p.Status), p.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("remote: append progress: %w", err)
	}
	return nil
}

// ProgressHistory returns a goal's snapshots oldest-first.
func (s *Store) ProgressHistory(ctx context.Context, goalID uuid.UUID, limit int) ([]model.GoalProgress, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, goal_id, session_key, actual, target, delta, status, evaluated_at
		 FROM goal_progress WHERE goal_id = $1
		 ORDER BY evaluated_at ASC, id ASC
		 LIMIT $2`, goalID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("remote: progress history: %w", err)
	}
	defer rows.Close()

	var history []model.GoalProgress
	for rows.Next() {
		var p model.GoalProgress
		if err := rows.Scan(
			&p.ID, &p.GoalID, &p.SessionKey, &p.Actual,
			&p.Target, &p.Delta, &p.Status, &p.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("remote: scan progress: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}
