// Package report assembles post-game analysis from a session's event log.
// A report is a pure function of the ordered log: team and player box
// scores, per-quarter breakdowns, plus/minus and second-chance points. The
// same log produces the same report whether it came from the local queue
// or the remote store.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/stats"
)

// PlayerLine is one own-roster player's row in the report. Played is false
// for roster players with no recorded events; their zero line is listed so
// the box score covers the whole roster.
type PlayerLine struct {
	PlayerID  uuid.UUID        `json:"player_id"`
	Name      string           `json:"name,omitempty"`
	Jersey    string           `json:"jersey,omitempty"`
	Line      stats.LineTotals `json:"line"`
	PlusMinus int              `json:"plus_minus"`
	Played    bool             `json:"played"`
}

// OpponentLine is one opposing player's row, keyed by jersey label.
type OpponentLine struct {
	Jersey string           `json:"jersey"`
	Line   stats.LineTotals `json:"line"`
}

// QuarterLine is the per-quarter scoring and counting breakdown.
type QuarterLine struct {
	Quarter  int              `json:"quarter"`
	Own      stats.LineTotals `json:"own"`
	Opponent stats.LineTotals `json:"opponent"`
}

// GameReport is the full analysis for one session.
type GameReport struct {
	SessionKey  string          `json:"session_key"`
	FixtureID   string          `json:"fixture_id"`
	FinalState  model.GameState `json:"final_state"`
	GeneratedAt time.Time       `json:"generated_at"`

	Totals    *stats.Totals  `json:"totals"`
	Quarters  []QuarterLine  `json:"quarters"`
	Players   []PlayerLine   `json:"players"`
	Opponents []OpponentLine `json:"opponents"`
}

// Cache is the optional report cache. Keys include the log's last sequence
// number, so entries self-invalidate when new events arrive.
type Cache interface {
	Get(ctx context.Context, sessionKey string, lastSeq int64) ([]byte, bool, error)
	Set(ctx context.Context, sessionKey string, lastSeq int64, payload []byte) error
}

// Reporter builds game reports.
type Reporter struct {
	logger *slog.Logger
	cache  Cache
	now    func() time.Time
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithCache attaches a report cache.
func WithCache(c Cache) Option {
	return func(r *Reporter) { r.cache = c }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a Reporter.
func New(logger *slog.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Build replays the event log into a full game report. roster lists the
// own-team players to include; roster players without events appear with
// Played false. Logs recorded without substitution events still report
// every stat except per-player stints, which fall back to full-game
// margin per the aggregation rules.
func (r *Reporter) Build(session model.GameSession, events []model.GameEvent, roster []model.Player) *GameReport {
	totals := stats.Aggregate(events)

	report := &GameReport{
		SessionKey:  session.SessionKey,
		FixtureID:   session.FixtureID,
		FinalState:  session.State,
		GeneratedAt: r.now(),
		Totals:      totals,
		Quarters:    quarterLines(events),
		Players:     playerLines(totals, roster),
		Opponents:   opponentLines(totals),
	}
	return report
}

// LocalSource retrieves a queued session document. The local queue
// satisfies it.
type LocalSource interface {
	Get(ctx context.Context, sessionKey string) (*model.SessionDocument, error)
}

// FromLocal builds the report for a locally queued session.
func (r *Reporter) FromLocal(ctx context.Context, src LocalSource, sessionKey string, roster []model.Player) (*GameReport, error) {
	doc, err := src.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("report: load local session: %w", err)
	}
	return r.cached(ctx, doc.Session, doc.Events, roster)
}

// SessionSource retrieves a synced session and its ordered event log.
type SessionSource interface {
	GetSessionWithEvents(ctx context.Context, sessionKey string) (model.GameSession, []model.GameEvent, error)
}

// FromRemote builds the report for a synced session.
func (r *Reporter) FromRemote(ctx context.Context, src SessionSource, sessionKey string, roster []model.Player) (*GameReport, error) {
	session, events, err := src.GetSessionWithEvents(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("report: load remote session: %w", err)
	}
	return r.cached(ctx, session, events, roster)
}

// cached consults the cache before building. Cache failures are logged and
// ignored; the report is always produced.
func (r *Reporter) cached(ctx context.Context, session model.GameSession, events []model.GameEvent, roster []model.Player) (*GameReport, error) {
	if r.cache == nil {
		return r.Build(session, events, roster), nil
	}

	if raw, hit, err := r.cache.Get(ctx, session.SessionKey, session.LastSeq); err != nil {
		r.logger.Warn("report: cache read failed", "session_key", session.SessionKey, "error", err)
	} else if hit {
		var report GameReport
		if err := json.Unmarshal(raw, &report); err == nil {
			return &report, nil
		}
		r.logger.Warn("report: cached payload corrupt, rebuilding", "session_key", session.SessionKey)
	}

	report := r.Build(session, events, roster)
	if raw, err := json.Marshal(report); err == nil {
		if err := r.cache.Set(ctx, session.SessionKey, session.LastSeq, raw); err != nil {
			r.logger.Warn("report: cache write failed", "session_key", session.SessionKey, "error", err)
		}
	}
	return report, nil
}

// quarterLines aggregates each quarter's events separately. Counting stats
// are associative, so the quarter lines sum to the game line.
func quarterLines(events []model.GameEvent) []QuarterLine {
	byQuarter := make(map[int][]model.GameEvent)
	for _, e := range events {
		byQuarter[e.Quarter] = append(byQuarter[e.Quarter], e)
	}

	quarters := make([]int, 0, len(byQuarter))
	for q := range byQuarter {
		quarters = append(quarters, q)
	}
	sort.Ints(quarters)

	lines := make([]QuarterLine, 0, len(quarters))
	for _, q := range quarters {
		totals := stats.Aggregate(byQuarter[q])
		lines = append(lines, QuarterLine{
			Quarter:  q,
			Own:      totals.Own,
			Opponent: totals.Opponent,
		})
	}
	return lines
}

func playerLines(totals *stats.Totals, roster []model.Player) []PlayerLine {
	byID := make(map[uuid.UUID]PlayerLine)
	for id, pt := range totals.Players {
		byID[id] = PlayerLine{
			PlayerID:  id,
			Line:      pt.LineTotals,
			PlusMinus: pt.PlusMinus,
			Played:    true,
		}
	}
	for _, p := range roster {
		line, ok := byID[p.ID]
		if !ok {
			line = PlayerLine{PlayerID: p.ID}
		}
		line.Name = p.Name
		line.Jersey = p.Jersey
		byID[p.ID] = line
	}

	lines := make([]PlayerLine, 0, len(byID))
	for _, line := range byID {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Line.Points != lines[j].Line.Points {
			return lines[i].Line.Points > lines[j].Line.Points
		}
		return lines[i].PlayerID.String() < lines[j].PlayerID.String()
	})
	return lines
}

func opponentLines(totals *stats.Totals) []OpponentLine {
	lines := make([]OpponentLine, 0, len(totals.Opponents))
	for jersey, lt := range totals.Opponents {
		lines = append(lines, OpponentLine{Jersey: jersey, Line: *lt})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Jersey < lines[j].Jersey })
	return lines
}
