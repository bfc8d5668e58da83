// Package stats derives box-score statistics by replaying a session's
// event log. All computation is a deterministic left-to-right pass over
// events ordered by sequence number; no mutable counters are consulted,
// so results are identical whether the log comes from the local queue or
// the remote store.
package stats

import (
	"github.com/google/uuid"

	"github.com/hoopdeck/courtside/internal/model"
)

// ShotLine tracks made/attempted for one shot category.
type ShotLine struct {
	Made     int `json:"made"`
	Attempts int `json:"attempts"`
}

// Percentage returns made/attempts as 0-100, or 0 when there are no attempts.
func (s ShotLine) Percentage() float64 {
	if s.Attempts <= 0 {
		return 0
	}
	return float64(s.Made) / float64(s.Attempts) * 100
}

func (s *ShotLine) add(other ShotLine) {
	s.Made += other.Made
	s.Attempts += other.Attempts
}

// LineTotals is the counting-stat line for one team or one player.
type LineTotals struct {
	Points            int      `json:"points"`
	FieldGoals        ShotLine `json:"field_goals"`
	ThreePointers     ShotLine `json:"three_pointers"`
	FreeThrows        ShotLine `json:"free_throws"`
	Rebounds          int      `json:"rebounds"`
	OffensiveRebounds int      `json:"offensive_rebounds"`
	DefensiveRebounds int      `json:"defensive_rebounds"`
	Assists           int      `json:"assists"`
	Steals            int      `json:"steals"`
	Blocks            int      `json:"blocks"`
	Turnovers         int      `json:"turnovers"`
	Fouls             int      `json:"fouls"`
	Timeouts          int      `json:"timeouts"`
}

// Merge adds other's counts into the receiver. Counting stats are
// associative, so per-quarter lines sum to the game line.
func (t *LineTotals) Merge(other LineTotals) {
	t.Points += other.Points
	t.FieldGoals.add(other.FieldGoals)
	t.ThreePointers.add(other.ThreePointers)
	t.FreeThrows.add(other.FreeThrows)
	t.Rebounds += other.Rebounds
	t.OffensiveRebounds += other.OffensiveRebounds
	t.DefensiveRebounds += other.DefensiveRebounds
	t.Assists += other.Assists
	t.Steals += other.Steals
	t.Blocks += other.Blocks
	t.Turnovers += other.Turnovers
	t.Fouls += other.Fouls
	t.Timeouts += other.Timeouts
}

func (t *LineTotals) observe(e model.GameEvent) {
	switch e.Kind {
	case model.EventFieldGoalMade:
		t.FieldGoals.Made++
		t.FieldGoals.Attempts++
		t.Points += e.Points()
	case model.EventFieldGoalMissed:
		t.FieldGoals.Attempts++
	case model.EventThreePointMade:
		t.ThreePointers.Made++
		t.ThreePointers.Attempts++
		t.Points += e.Points()
	case model.EventThreePointMissed:
		t.ThreePointers.Attempts++
	case model.EventFreeThrowMade:
		t.FreeThrows.Made++
		t.FreeThrows.Attempts++
		t.Points += e.Points()
	case model.EventFreeThrowMissed:
		t.FreeThrows.Attempts++
	case model.EventRebound:
		t.Rebounds++
		switch e.ReboundType() {
		case "offensive":
			t.OffensiveRebounds++
		case "defensive":
			t.DefensiveRebounds++
		}
	case model.EventAssist:
		t.Assists++
	case model.EventSteal:
		t.Steals++
	case model.EventBlock:
		t.Blocks++
	case model.EventTurnover:
		t.Turnovers++
	case model.EventFoul:
		t.Fouls++
	case model.EventTimeout:
		t.Timeouts++
	}
}

// KindTally is the raw occurrence count and value sum for one event kind.
// Value sums use the shot's point value for scoring kinds and the recorded
// value (default 1) for everything else, so metric definitions can consume
// arbitrary kinds uniformly.
type KindTally struct {
	Count int `json:"count"`
	Sum   int `json:"sum"`
}

// PlayerTotals is one own-roster player's line plus their plus/minus.
type PlayerTotals struct {
	LineTotals
	PlusMinus int `json:"plus_minus"`
}

// Totals is the full aggregate for one replayed event span.
type Totals struct {
	Own      LineTotals `json:"own"`
	Opponent LineTotals `json:"opponent"`

	// Margin is own score minus opponent score over the replayed span.
	Margin int `json:"margin"`

	OwnSecondChance int `json:"own_second_chance"`
	OppSecondChance int `json:"opp_second_chance"`

	OwnByKind map[model.EventKind]KindTally `json:"own_by_kind"`
	OppByKind map[model.EventKind]KindTally `json:"opp_by_kind"`

	Players map[uuid.UUID]*PlayerTotals `json:"players"`
	// Opponents is keyed by jersey label; opponent players are never
	// enrolled as roster entities.
	Opponents map[string]*LineTotals `json:"opponents"`
}

func newTotals() *Totals {
	return &Totals{
		OwnByKind: make(map[model.EventKind]KindTally),
		OppByKind: make(map[model.EventKind]KindTally),
		Players:   make(map[uuid.UUID]*PlayerTotals),
		Opponents: make(map[string]*LineTotals),
	}
}

// Tally returns the kind tally for the given side.
func (t *Totals) Tally(kind model.EventKind, opponent bool) KindTally {
	if opponent {
		return t.OppByKind[kind]
	}
	return t.OwnByKind[kind]
}

// MergeCounts folds other's counting stats into the receiver: team lines,
// kind tallies and second-chance points. Plus/minus and player lines are
// stint-dependent and are not merged. Season-window metrics are computed
// over tallies merged this way.
func (t *Totals) MergeCounts(other *Totals) {
	t.Own.Merge(other.Own)
	t.Opponent.Merge(other.Opponent)
	t.Margin += other.Margin
	t.OwnSecondChance += other.OwnSecondChance
	t.OppSecondChance += other.OppSecondChance
	for k, v := range other.OwnByKind {
		cur := t.OwnByKind[k]
		cur.Count += v.Count
		cur.Sum += v.Sum
		t.OwnByKind[k] = cur
	}
	for k, v := range other.OppByKind {
		cur := t.OppByKind[k]
		cur.Count += v.Count
		cur.Sum += v.Sum
		t.OppByKind[k] = cur
	}
}

// Empty reports whether nothing has been tallied on either side.
func (t *Totals) Empty() bool {
	return len(t.OwnByKind) == 0 && len(t.OppByKind) == 0
}
