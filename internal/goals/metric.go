// Package goals computes metric actual-vs-target values from aggregated
// stats and classifies progress status. Metric and Goal definitions are
// read-only configuration; GoalProgress snapshots are the engine's only
// output and are append-only.
package goals

import (
	"errors"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/stats"
)

// ErrNotComputable is returned when a metric has no value for the window,
// e.g. a percentage with zero attempts. Non-computable sessions are
// excluded from rolling averages rather than treated as zero.
var ErrNotComputable = errors.New("goals: metric not computable for window")

// MetricValue computes a metric's value for one session's totals.
// The second return is false when the session has no computable value.
func MetricValue(m model.Metric, t *stats.Totals) (float64, bool) {
	switch m.Kind {
	case model.MetricSum:
		return float64(t.Tally(m.EventKind, false).Sum), true

	case model.MetricAverage:
		tally := t.Tally(m.EventKind, false)
		if tally.Count == 0 {
			return 0, false
		}
		return float64(tally.Sum) / float64(tally.Count), true

	case model.MetricPercentage:
		made := t.Tally(m.MadeKind, false).Count
		missed := t.Tally(m.MissedKind, false).Count
		attempts := made + missed
		if attempts == 0 {
			return 0, false
		}
		return clamp(float64(made) / float64(attempts) * 100), true

	case model.MetricRatio:
		numer := t.Tally(m.NumerKind, false).Count
		denom := t.Tally(m.DenomKind, false).Count
		if denom == 0 {
			return 0, false
		}
		return clamp(float64(numer) / float64(denom)), true

	case model.MetricSecondChancePoints:
		return float64(t.OwnSecondChance), true

	case model.MetricReboundSplit:
		if t.Own.Rebounds == 0 {
			return 0, false
		}
		return clamp(float64(t.Own.OffensiveRebounds) / float64(t.Own.Rebounds) * 100), true
	}
	return 0, false
}

// clamp floors derived values at zero. A malformed log must not produce a
// negative statistic.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// windowValue resolves the metric value for one goal window over sessions
// ordered most recent first. recent[0] is the current session.
func windowValue(goal model.Goal, metric model.Metric, recent []SessionStats) (float64, error) {
	switch goal.Window {
	case model.WindowPerGame:
		if len(recent) == 0 {
			return 0, ErrNotComputable
		}
		v, ok := MetricValue(metric, recent[0].Totals)
		if !ok {
			return 0, ErrNotComputable
		}
		return v, nil

	case model.WindowRolling:
		n := goal.WindowSize
		if n <= 0 {
			n = 1
		}
		if len(recent) > n {
			recent = recent[:n]
		}
		return rollingMean(metric, recent)

	case model.WindowSeason:
		// Season totals merge every session's tallies and compute once, so
		// percentage metrics reflect true season-wide made/attempted.
		if len(recent) == 0 {
			return 0, ErrNotComputable
		}
		merged := stats.Aggregate(nil)
		for _, s := range recent {
			merged.MergeCounts(s.Totals)
		}
		v, ok := MetricValue(metric, merged)
		if !ok {
			return 0, ErrNotComputable
		}
		return v, nil
	}
	return 0, ErrNotComputable
}

// rollingMean is the unweighted mean over sessions with a computable value.
func rollingMean(metric model.Metric, window []SessionStats) (float64, error) {
	var sum float64
	var count int
	for _, s := range window {
		v, ok := MetricValue(metric, s.Totals)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, ErrNotComputable
	}
	return sum / float64(count), nil
}
