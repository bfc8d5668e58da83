package stats

import (
	"sort"

	"github.com/google/uuid"

	"github.com/hoopdeck/courtside/internal/model"
)

// chainPhase tracks one team's second-chance scan state.
type chainPhase int

const (
	chainNone chainPhase = iota
	// chainMissed: the team has a live missed shot; an offensive rebound
	// continues the chain, anything else ends it.
	chainMissed
	// chainRebound: the team secured the offensive rebound; their next made
	// shot is credited as second-chance points.
	chainRebound
)

// stint tracks one player's on-court bookkeeping for plus/minus.
type stint struct {
	onCourt     bool
	entryMargin int
	seenSub     bool
	plusMinus   int
}

// Accumulator replays events incrementally. Feeding events 1..n and then
// n+1..m yields the same final totals as feeding 1..m at once, so partial
// replays (network-delayed batches, live dashboards) stay correct.
type Accumulator struct {
	totals *Totals
	margin int
	stints map[uuid.UUID]*stint
	// chain[0] is the own team's second-chance state, chain[1] the opponent's.
	chain [2]chainPhase
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		totals: newTotals(),
		stints: make(map[uuid.UUID]*stint),
	}
}

// Aggregate replays a full event log in one pass and returns its totals.
func Aggregate(events []model.GameEvent) *Totals {
	acc := NewAccumulator()
	acc.Feed(events)
	return acc.Finalize()
}

// Feed replays a batch of events. The batch is ordered by sequence number
// before replay; events recorded in network-delayed batches stay correct
// as long as batches themselves arrive in order.
func (a *Accumulator) Feed(events []model.GameEvent) {
	batch := make([]model.GameEvent, len(events))
	copy(batch, events)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Seq < batch[j].Seq })

	for _, e := range batch {
		a.observe(e)
	}
}

// Finalize closes open player stints against the current margin and returns
// a snapshot of the totals. The accumulator itself is not consumed; more
// events may be fed and Finalize called again.
func (a *Accumulator) Finalize() *Totals {
	out := a.snapshot()
	for id, st := range a.stints {
		p := out.Players[id]
		if p == nil {
			p = &PlayerTotals{}
			out.Players[id] = p
		}
		switch {
		case !st.seenSub:
			// No substitution events at all: assumed on-court throughout,
			// so the player carries the full margin.
			p.PlusMinus = a.margin
		case st.onCourt:
			p.PlusMinus = st.plusMinus + (a.margin - st.entryMargin)
		default:
			p.PlusMinus = st.plusMinus
		}
	}
	return out
}

func (a *Accumulator) observe(e model.GameEvent) {
	// Malformed events are skipped, never fatal: partial stats beat none.
	if !e.Kind.Known() {
		return
	}

	a.observeChain(e)

	if e.Kind == model.EventSubstitution {
		a.observeSubstitution(e)
		return
	}

	a.tally(e)

	if pts := e.Points(); pts > 0 {
		if e.Opponent {
			a.margin -= pts
		} else {
			a.margin += pts
		}
		a.totals.Margin = a.margin
	}

	line := &a.totals.Own
	if e.Opponent {
		line = &a.totals.Opponent
	}
	line.observe(e)

	if !e.Opponent && e.PlayerID != nil {
		p := a.totals.Players[*e.PlayerID]
		if p == nil {
			p = &PlayerTotals{}
			a.totals.Players[*e.PlayerID] = p
		}
		p.observe(e)
		if _, ok := a.stints[*e.PlayerID]; !ok {
			a.stints[*e.PlayerID] = &stint{}
		}
	}

	if e.Opponent && e.OpponentJersey != nil && *e.OpponentJersey != "" {
		o := a.totals.Opponents[*e.OpponentJersey]
		if o == nil {
			o = &LineTotals{}
			a.totals.Opponents[*e.OpponentJersey] = o
		}
		o.observe(e)
	}
}

// observeChain advances both teams' second-chance scans for one event.
// Any action by one team breaks the other team's chain; within a team the
// chain runs missed shot → offensive rebound → made shot, and ends on any
// action of a different kind.
func (a *Accumulator) observeChain(e model.GameEvent) {
	self, other := 0, 1
	if e.Opponent {
		self, other = 1, 0
	}

	a.chain[other] = chainNone

	switch {
	case e.Kind.IsMissedShot():
		a.chain[self] = chainMissed
	case e.Kind == model.EventRebound && e.ReboundType() == "offensive" && a.chain[self] == chainMissed:
		a.chain[self] = chainRebound
	case e.Kind.IsMadeShot() && a.chain[self] == chainRebound:
		if e.Opponent {
			a.totals.OppSecondChance += e.Points()
		} else {
			a.totals.OwnSecondChance += e.Points()
		}
		a.chain[self] = chainNone
	default:
		a.chain[self] = chainNone
	}
}

// observeSubstitution updates plus/minus stint bookkeeping. Own-roster
// players only: opponents have no identity to attach a stint to.
func (a *Accumulator) observeSubstitution(e model.GameEvent) {
	if e.Opponent || e.PlayerID == nil {
		return
	}

	st := a.stints[*e.PlayerID]
	if st == nil {
		st = &stint{}
		a.stints[*e.PlayerID] = st
	}
	if _, ok := a.totals.Players[*e.PlayerID]; !ok {
		a.totals.Players[*e.PlayerID] = &PlayerTotals{}
	}

	dir := e.SubDirection()
	if dir == "" {
		// Older logs recorded bare substitutions; toggle. A player's first
		// substitution is always an exit: they were on court until it.
		if !st.seenSub || st.onCourt {
			dir = "out"
		} else {
			dir = "in"
		}
	}

	switch dir {
	case "in":
		if !st.onCourt {
			st.onCourt = true
			st.entryMargin = a.margin
		}
	case "out":
		switch {
		case st.onCourt:
			st.plusMinus += a.margin - st.entryMargin
			st.onCourt = false
		case !st.seenSub:
			// First event for this player is an exit: they started the game,
			// on-court since margin zero.
			st.plusMinus += a.margin
		}
	}
	st.seenSub = true
}

func (a *Accumulator) tally(e model.GameEvent) {
	byKind := a.totals.OwnByKind
	if e.Opponent {
		byKind = a.totals.OppByKind
	}
	t := byKind[e.Kind]
	t.Count++
	switch {
	case e.Kind.IsMadeShot():
		t.Sum += e.Points()
	case e.Value != 0:
		t.Sum += e.Value
	default:
		t.Sum++
	}
	byKind[e.Kind] = t
}

// snapshot deep-copies the totals so Finalize can close stints without
// disturbing accumulator state.
func (a *Accumulator) snapshot() *Totals {
	out := newTotals()
	out.Own = a.totals.Own
	out.Opponent = a.totals.Opponent
	out.Margin = a.totals.Margin
	out.OwnSecondChance = a.totals.OwnSecondChance
	out.OppSecondChance = a.totals.OppSecondChance
	for k, v := range a.totals.OwnByKind {
		out.OwnByKind[k] = v
	}
	for k, v := range a.totals.OppByKind {
		out.OppByKind[k] = v
	}
	for id, p := range a.totals.Players {
		cp := *p
		out.Players[id] = &cp
	}
	for j, o := range a.totals.Opponents {
		cp := *o
		out.Opponents[j] = &cp
	}
	return out
}
