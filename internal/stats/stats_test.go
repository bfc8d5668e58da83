package stats

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdeck/courtside/internal/model"
)

type eventBuilder struct {
	seq int64
}

func (b *eventBuilder) next(kind model.EventKind, opponent bool, mutate ...func(*model.GameEvent)) model.GameEvent {
	b.seq++
	e := model.GameEvent{
		ID:       uuid.New(),
		Seq:      b.seq,
		Kind:     kind,
		Quarter:  1,
		Opponent: opponent,
	}
	for _, fn := range mutate {
		fn(&e)
	}
	return e
}

func withPlayer(id uuid.UUID) func(*model.GameEvent) {
	return func(e *model.GameEvent) { e.PlayerID = &id }
}

func withValue(v int) func(*model.GameEvent) {
	return func(e *model.GameEvent) { e.Value = v }
}

func withJersey(j string) func(*model.GameEvent) {
	return func(e *model.GameEvent) { e.OpponentJersey = &j }
}

func withMeta(key, val string) func(*model.GameEvent) {
	return func(e *model.GameEvent) {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		e.Metadata[key] = val
	}
}

func TestAggregate_BasicTotals(t *testing.T) {
	b := &eventBuilder{}
	playerA := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)),
		b.next(model.EventThreePointMade, false, withPlayer(playerA), withValue(3)),
		b.next(model.EventFieldGoalMissed, false, withPlayer(playerA)),
		b.next(model.EventAssist, false),
		b.next(model.EventFieldGoalMade, true, withJersey("23"), withValue(2)),
		b.next(model.EventTurnover, true, withJersey("23")),
	}

	totals := Aggregate(events)

	assert.Equal(t, 5, totals.Own.Points)
	assert.Equal(t, 1, totals.Own.FieldGoals.Made)
	assert.Equal(t, 2, totals.Own.FieldGoals.Attempts)
	assert.Equal(t, 1, totals.Own.ThreePointers.Made)
	assert.Equal(t, 1, totals.Own.Assists)
	assert.Equal(t, 2, totals.Opponent.Points)
	assert.Equal(t, 3, totals.Margin)

	require.Contains(t, totals.Players, playerA)
	assert.Equal(t, 5, totals.Players[playerA].Points)

	require.Contains(t, totals.Opponents, "23")
	assert.Equal(t, 2, totals.Opponents["23"].Points)
	assert.Equal(t, 1, totals.Opponents["23"].Turnovers)
}

func TestAggregate_ShootingPercentageZeroWhenNoAttempts(t *testing.T) {
	totals := Aggregate(nil)
	assert.Zero(t, totals.Own.FieldGoals.Percentage())
	assert.Zero(t, totals.Own.FreeThrows.Percentage())
}

func TestAggregate_SplitReplayEqualsOnePass(t *testing.T) {
	b := &eventBuilder{}
	playerA := uuid.New()
	playerB := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)),
		b.next(model.EventFieldGoalMissed, false, withPlayer(playerB)),
		b.next(model.EventRebound, false, withPlayer(playerA), withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventFieldGoalMade, false, withPlayer(playerB), withValue(2)),
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "out")),
		b.next(model.EventThreePointMade, true, withJersey("7"), withValue(3)),
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "in")),
		b.next(model.EventFreeThrowMade, false, withPlayer(playerA), withValue(1)),
	}

	onePass := Aggregate(events)

	for split := 1; split < len(events); split++ {
		acc := NewAccumulator()
		acc.Feed(events[:split])
		acc.Feed(events[split:])
		twoPass := acc.Finalize()
		assert.Equal(t, onePass, twoPass, "split at %d", split)
	}
}

func TestAggregate_PlusMinusScenario(t *testing.T) {
	// fg_made(playerA,2), sub(playerA out), sub(playerB in), fg_made(playerB,2)
	// with no opponent scoring: margin 4, playerA +2, playerB +2.
	b := &eventBuilder{}
	playerA := uuid.New()
	playerB := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)),
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "out")),
		b.next(model.EventSubstitution, false, withPlayer(playerB), withMeta(model.MetaDirection, "in")),
		b.next(model.EventFieldGoalMade, false, withPlayer(playerB), withValue(2)),
	}

	totals := Aggregate(events)

	assert.Equal(t, 4, totals.Margin)
	require.Contains(t, totals.Players, playerA)
	require.Contains(t, totals.Players, playerB)
	assert.Equal(t, 2, totals.Players[playerA].PlusMinus)
	assert.Equal(t, 2, totals.Players[playerB].PlusMinus)
}

func TestAggregate_PlusMinusSumEqualsMarginWithFullCoverage(t *testing.T) {
	b := &eventBuilder{}
	playerA := uuid.New()
	playerB := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)),
		b.next(model.EventFieldGoalMade, true, withJersey("11"), withValue(2)),
		b.next(model.EventThreePointMade, false, withPlayer(playerA), withValue(3)),
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "out")),
		b.next(model.EventSubstitution, false, withPlayer(playerB), withMeta(model.MetaDirection, "in")),
		b.next(model.EventFieldGoalMade, true, withJersey("11"), withValue(2)),
		b.next(model.EventFreeThrowMade, false, withPlayer(playerB), withValue(1)),
	}

	totals := Aggregate(events)

	sum := 0
	for _, p := range totals.Players {
		sum += p.PlusMinus
	}
	assert.Equal(t, totals.Margin, sum)
}

func TestAggregate_NoSubstitutionsMeansFullMargin(t *testing.T) {
	b := &eventBuilder{}
	playerA := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)),
		b.next(model.EventFieldGoalMade, true, withJersey("5"), withValue(2)),
		b.next(model.EventThreePointMade, false, withPlayer(playerA), withValue(3)),
	}

	totals := Aggregate(events)
	assert.Equal(t, 3, totals.Margin)
	assert.Equal(t, 3, totals.Players[playerA].PlusMinus)
}

func TestAggregate_MultipleStintsAccumulate(t *testing.T) {
	b := &eventBuilder{}
	playerA := uuid.New()

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withPlayer(playerA), withValue(2)), // margin 2
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "out")), // stint 1: +2
		b.next(model.EventFieldGoalMade, true, withJersey("9"), withValue(2)), // margin 0
		b.next(model.EventSubstitution, false, withPlayer(playerA), withMeta(model.MetaDirection, "in")),
		b.next(model.EventFieldGoalMade, true, withJersey("9"), withValue(2)), // margin -2; stint 2: -2
	}

	totals := Aggregate(events)
	assert.Equal(t, -2, totals.Margin)
	assert.Equal(t, 0, totals.Players[playerA].PlusMinus, "stints +2 and -2 accumulate to 0")
}

func TestSecondChance_OpponentReboundBreaksChain(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, false),
		b.next(model.EventRebound, true, withJersey("4"), withMeta(model.MetaReboundType, "defensive")),
		b.next(model.EventFieldGoalMade, false, withValue(2)),
	}

	totals := Aggregate(events)
	assert.Zero(t, totals.OwnSecondChance)
}

func TestSecondChance_OffensiveReboundThenMadeShotCredits(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, false),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventThreePointMade, false, withValue(3)),
	}

	totals := Aggregate(events)
	assert.Equal(t, 3, totals.OwnSecondChance, "credits exactly the made shot's point value")
}

func TestSecondChance_InterveningOpponentActionBreaksChain(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, false),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventSteal, true, withJersey("8")),
		b.next(model.EventFieldGoalMade, false, withValue(2)),
	}

	totals := Aggregate(events)
	assert.Zero(t, totals.OwnSecondChance)
}

func TestSecondChance_OtherOwnActionBreaksChain(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, false),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventTurnover, false),
		b.next(model.EventFieldGoalMade, false, withValue(2)),
	}

	totals := Aggregate(events)
	assert.Zero(t, totals.OwnSecondChance)
}

func TestSecondChance_DefensiveReboundDoesNotContinueChain(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, false),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "defensive")),
		b.next(model.EventFieldGoalMade, false, withValue(2)),
	}

	totals := Aggregate(events)
	assert.Zero(t, totals.OwnSecondChance)
}

func TestSecondChance_OpponentChainTrackedIndependently(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMissed, true, withJersey("12")),
		b.next(model.EventRebound, true, withJersey("30"), withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventFieldGoalMade, true, withJersey("12"), withValue(2)),
	}

	totals := Aggregate(events)
	assert.Equal(t, 2, totals.OppSecondChance)
	assert.Zero(t, totals.OwnSecondChance)
}

func TestAggregate_UnknownKindsSkipped(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventFieldGoalMade, false, withValue(2)),
		b.next(model.EventKind("halftime_show"), false),
		b.next(model.EventFieldGoalMade, false, withValue(2)),
	}

	totals := Aggregate(events)
	assert.Equal(t, 4, totals.Own.Points)
}

func TestAggregate_OutOfOrderBatchReplaysBySeq(t *testing.T) {
	b := &eventBuilder{}
	e1 := b.next(model.EventFieldGoalMissed, false)
	e2 := b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "offensive"))
	e3 := b.next(model.EventFieldGoalMade, false, withValue(2))

	// Delivered out of order within the batch; seq order must win.
	totals := Aggregate([]model.GameEvent{e3, e1, e2})
	assert.Equal(t, 2, totals.OwnSecondChance)
}

func TestAggregate_ReboundSplit(t *testing.T) {
	b := &eventBuilder{}

	events := []model.GameEvent{
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "offensive")),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "defensive")),
		b.next(model.EventRebound, false, withMeta(model.MetaReboundType, "defensive")),
	}

	totals := Aggregate(events)
	assert.Equal(t, 3, totals.Own.Rebounds)
	assert.Equal(t, 1, totals.Own.OffensiveRebounds)
	assert.Equal(t, 2, totals.Own.DefensiveRebounds)
}

func TestLineTotals_MergeSumsCounts(t *testing.T) {
	a := LineTotals{Points: 10, Assists: 3, FieldGoals: ShotLine{Made: 4, Attempts: 9}}
	b := LineTotals{Points: 7, Assists: 1, FieldGoals: ShotLine{Made: 3, Attempts: 5}}
	a.Merge(b)
	assert.Equal(t, 17, a.Points)
	assert.Equal(t, 4, a.Assists)
	assert.Equal(t, ShotLine{Made: 7, Attempts: 14}, a.FieldGoals)
}
