package goals

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memProgressStore is an in-memory ProgressStore for evaluator tests.
type memProgressStore struct {
	snapshots []model.GoalProgress
}

func (s *memProgressStore) LatestProgress(_ context.Context, goalID uuid.UUID) (*model.GoalProgress, error) {
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].GoalID == goalID {
			p := s.snapshots[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memProgressStore) AppendProgress(_ context.Context, p model.GoalProgress) error {
	s.snapshots = append(s.snapshots, p)
	return nil
}

func totalsWithPoints(points int) *stats.Totals {
	var events []model.GameEvent
	seq := int64(0)
	for points >= 2 {
		seq++
		events = append(events, model.GameEvent{Seq: seq, Kind: model.EventFieldGoalMade, Value: 2})
		points -= 2
	}
	for points > 0 {
		seq++
		events = append(events, model.GameEvent{Seq: seq, Kind: model.EventFreeThrowMade, Value: 1})
		points--
	}
	return stats.Aggregate(events)
}

func pointsMetric() model.Metric {
	return model.Metric{
		ID:        uuid.New(),
		Name:      "points",
		Version:   1,
		Kind:      model.MetricSum,
		EventKind: model.EventFieldGoalMade,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		actual float64
		target float64
		op     model.GoalOperator
		want   model.GoalStatus
	}{
		{"gte met", 10, 9, model.OpGTE, model.StatusOnTrack},
		{"gte exact", 9, 9, model.OpGTE, model.StatusOnTrack},
		{"gte within 10 pct below", 8.5, 9, model.OpGTE, model.StatusAtRisk},
		{"gte beyond 10 pct below", 8, 9, model.OpGTE, model.StatusOffTrack},
		{"lte met", 8, 9, model.OpLTE, model.StatusOnTrack},
		{"lte within 10 pct above", 9.8, 9, model.OpLTE, model.StatusAtRisk},
		{"lte beyond 10 pct above", 10, 9, model.OpLTE, model.StatusOffTrack},
		{"eq within 5 pct", 10.4, 10, model.OpEQ, model.StatusOnTrack},
		{"eq within 15 pct", 11.2, 10, model.OpEQ, model.StatusAtRisk},
		{"eq beyond 15 pct", 12, 10, model.OpEQ, model.StatusOffTrack},
		{"eq below within 15 pct", 8.8, 10, model.OpEQ, model.StatusAtRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.actual, tt.target, tt.op))
		})
	}
}

func TestRollingMean_AveragesLastN(t *testing.T) {
	// Values [10, 12, 8], N=3 => 10.0; op gte, target 9 => on_track.
	metric := pointsMetric()
	recent := []SessionStats{
		{SessionKey: "s3", Totals: totalsWithPoints(10)},
		{SessionKey: "s2", Totals: totalsWithPoints(12)},
		{SessionKey: "s1", Totals: totalsWithPoints(8)},
	}
	goal := model.Goal{
		ID:         uuid.New(),
		MetricID:   metric.ID,
		Target:     9,
		Operator:   model.OpGTE,
		Window:     model.WindowRolling,
		WindowSize: 3,
	}

	store := &memProgressStore{}
	ev := NewEvaluator(store, func() time.Time { return time.Unix(0, 0).UTC() }, testLogger())

	progress, transition, err := ev.Evaluate(context.Background(), goal, metric, recent)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, progress.Actual, 1e-9)
	assert.Equal(t, model.StatusOnTrack, progress.Status)
	assert.False(t, transition, "first snapshot has nothing to compare against")
	assert.Len(t, store.snapshots, 1)
}

func TestRollingMean_ExcludesNonComputableSessions(t *testing.T) {
	metric := model.Metric{
		ID:         uuid.New(),
		Name:       "fg_pct",
		Version:    1,
		Kind:       model.MetricPercentage,
		MadeKind:   model.EventFieldGoalMade,
		MissedKind: model.EventFieldGoalMissed,
	}

	withAttempts := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 2, Kind: model.EventFieldGoalMissed},
	})
	noAttempts := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventAssist},
	})

	mean, err := rollingMean(metric, []SessionStats{
		{SessionKey: "a", Totals: withAttempts},
		{SessionKey: "b", Totals: noAttempts},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, mean, 1e-9, "session with no attempts excluded, not counted as zero")
}

func TestRollingMean_AllNonComputable(t *testing.T) {
	metric := model.Metric{
		Kind:       model.MetricPercentage,
		MadeKind:   model.EventFieldGoalMade,
		MissedKind: model.EventFieldGoalMissed,
	}
	_, err := rollingMean(metric, []SessionStats{
		{SessionKey: "a", Totals: stats.Aggregate(nil)},
	})
	assert.ErrorIs(t, err, ErrNotComputable)
}

func TestEvaluate_PerGameWindow(t *testing.T) {
	metric := pointsMetric()
	goal := model.Goal{
		ID:       uuid.New(),
		MetricID: metric.ID,
		Target:   12,
		Operator: model.OpGTE,
		Window:   model.WindowPerGame,
	}

	store := &memProgressStore{}
	ev := NewEvaluator(store, nil, testLogger())

	progress, _, err := ev.Evaluate(context.Background(), goal, metric, []SessionStats{
		{SessionKey: "cur", Totals: totalsWithPoints(14)},
		{SessionKey: "old", Totals: totalsWithPoints(2)},
	})
	require.NoError(t, err)
	assert.InDelta(t, 14.0, progress.Actual, 1e-9, "per-game uses the current session only")
	assert.Equal(t, "cur", progress.SessionKey)
	assert.InDelta(t, 2.0, progress.Delta, 1e-9)
}

func TestEvaluate_SeasonWindowMergesTallies(t *testing.T) {
	metric := model.Metric{
		ID:         uuid.New(),
		Name:       "fg_pct",
		Kind:       model.MetricPercentage,
		MadeKind:   model.EventFieldGoalMade,
		MissedKind: model.EventFieldGoalMissed,
	}
	goal := model.Goal{
		ID:       uuid.New(),
		MetricID: metric.ID,
		Target:   40,
		Operator: model.OpGTE,
		Window:   model.WindowSeason,
	}

	// Session 1: 1/4 (25%). Session 2: 3/4 (75%). Season: 4/8 = 50%,
	// not the 50% mean of percentages by accident: verify via tallies.
	s1 := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 2, Kind: model.EventFieldGoalMissed},
		{Seq: 3, Kind: model.EventFieldGoalMissed},
		{Seq: 4, Kind: model.EventFieldGoalMissed},
	})
	s2 := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 2, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 3, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 4, Kind: model.EventFieldGoalMissed},
	})

	store := &memProgressStore{}
	ev := NewEvaluator(store, nil, testLogger())

	progress, _, err := ev.Evaluate(context.Background(), goal, metric, []SessionStats{
		{SessionKey: "s2", Totals: s2},
		{SessionKey: "s1", Totals: s1},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, progress.Actual, 1e-9)
	assert.Equal(t, model.StatusOnTrack, progress.Status)
}

func TestEvaluate_TransitionDetection(t *testing.T) {
	metric := pointsMetric()
	goal := model.Goal{
		ID:       uuid.New(),
		MetricID: metric.ID,
		Target:   10,
		Operator: model.OpGTE,
		Window:   model.WindowPerGame,
	}

	store := &memProgressStore{}
	ev := NewEvaluator(store, nil, testLogger())
	ctx := context.Background()

	_, transition, err := ev.Evaluate(ctx, goal, metric, []SessionStats{{SessionKey: "g1", Totals: totalsWithPoints(12)}})
	require.NoError(t, err)
	assert.False(t, transition)

	_, transition, err = ev.Evaluate(ctx, goal, metric, []SessionStats{{SessionKey: "g2", Totals: totalsWithPoints(12)}})
	require.NoError(t, err)
	assert.False(t, transition, "same status, no transition")

	_, transition, err = ev.Evaluate(ctx, goal, metric, []SessionStats{{SessionKey: "g3", Totals: totalsWithPoints(4)}})
	require.NoError(t, err)
	assert.True(t, transition, "on_track -> off_track")

	// History is append-only: three snapshots, none overwritten.
	assert.Len(t, store.snapshots, 3)
}

func TestEvaluate_NotComputableSkipsSnapshot(t *testing.T) {
	metric := model.Metric{
		ID:         uuid.New(),
		Kind:       model.MetricPercentage,
		MadeKind:   model.EventFieldGoalMade,
		MissedKind: model.EventFieldGoalMissed,
	}
	goal := model.Goal{ID: uuid.New(), MetricID: metric.ID, Window: model.WindowPerGame, Operator: model.OpGTE}

	store := &memProgressStore{}
	ev := NewEvaluator(store, nil, testLogger())

	_, _, err := ev.Evaluate(context.Background(), goal, metric, []SessionStats{
		{SessionKey: "cur", Totals: stats.Aggregate(nil)},
	})
	assert.ErrorIs(t, err, ErrNotComputable)
	assert.Empty(t, store.snapshots)
}

func TestMetricValue_Ratio(t *testing.T) {
	metric := model.Metric{
		Kind:      model.MetricRatio,
		NumerKind: model.EventAssist,
		DenomKind: model.EventTurnover,
	}
	totals := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventAssist},
		{Seq: 2, Kind: model.EventAssist},
		{Seq: 3, Kind: model.EventAssist},
		{Seq: 4, Kind: model.EventTurnover},
		{Seq: 5, Kind: model.EventTurnover},
	})

	v, ok := MetricValue(metric, totals)
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	_, ok = MetricValue(metric, stats.Aggregate(nil))
	assert.False(t, ok, "zero denominator is not computable")
}

func TestMetricValue_SecondChanceAndReboundSplit(t *testing.T) {
	totals := stats.Aggregate([]model.GameEvent{
		{Seq: 1, Kind: model.EventFieldGoalMissed},
		{Seq: 2, Kind: model.EventRebound, Metadata: map[string]any{model.MetaReboundType: "offensive"}},
		{Seq: 3, Kind: model.EventFieldGoalMade, Value: 2},
		{Seq: 4, Kind: model.EventRebound, Metadata: map[string]any{model.MetaReboundType: "defensive"}},
	})

	v, ok := MetricValue(model.Metric{Kind: model.MetricSecondChancePoints}, totals)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	v, ok = MetricValue(model.Metric{Kind: model.MetricReboundSplit}, totals)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)
}
