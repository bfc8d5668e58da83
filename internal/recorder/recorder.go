// Package recorder appends immutable, ordered action records to a
// session's local event log. Every operation is local-only: recording
// never waits on network I/O, and the sync engine drains the queue
// asynchronously.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/queue"
	"github.com/hoopdeck/courtside/internal/stats"
)

// EventInput is the caller-supplied portion of a new event. The recorder
// assigns identity, sequence number and sync status.
type EventInput struct {
	Kind           model.EventKind
	Value          int
	Quarter        int
	Clock          string
	Opponent       bool
	PlayerID       *uuid.UUID
	OpponentJersey *string
	Metadata       map[string]any
}

// Recorder is the single writer for session event logs.
//
// Exactly one recorder instance writes a given session's log (one physical
// scorer per live game); different sessions record independently and never
// block each other.
type Recorder struct {
	queue  *queue.Queue
	logger *slog.Logger
	now    func() time.Time

	// notify signals the sync engine that local state changed (debounced
	// on the engine side). Nil when no sync engine is attached.
	notify func()
	// syncNow runs one bounded synchronous sync attempt; used by
	// EndSession. Nil when no sync engine is attached.
	syncNow func(ctx context.Context) error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock injects the time source (tests use a fixed clock).
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithSyncTriggers attaches the sync engine's notify/sync-now hooks.
func WithSyncTriggers(notify func(), syncNow func(ctx context.Context) error) Option {
	return func(r *Recorder) {
		r.notify = notify
		r.syncNow = syncNow
	}
}

// New creates a Recorder over the local queue.
func New(q *queue.Queue, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		queue:  q,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

func (r *Recorder) signal() {
	if r.notify != nil {
		r.notify()
	}
}

// StartSession resumes the active session for a fixture when one exists,
// otherwise creates a new session with its sequence counter at zero.
// Resuming reuses the existing session key, so the remote upsert can never
// create a duplicate for the same fixture.
func (r *Recorder) StartSession(ctx context.Context, fixtureID string, externalGameID *string, initial model.GameState) (model.GameSession, error) {
	existing, err := r.queue.ActiveByFixture(ctx, fixtureID)
	if err != nil {
		return model.GameSession{}, fmt.Errorf("recorder: start session: %w", err)
	}
	if existing != nil {
		r.logger.Info("recorder: resuming active session",
			"session_key", existing.Session.SessionKey, "fixture_id", fixtureID)
		return existing.Session, nil
	}

	now := r.now()
	session := model.GameSession{
		SessionKey:     fmt.Sprintf("%s-%s", fixtureID, now.Format("20060102T150405Z")),
		FixtureID:      fixtureID,
		ExternalGameID: externalGameID,
		State:          initial,
		Active:         true,
		SyncStatus:     model.SyncPending,
		StartedAt:      now,
		LastModified:   now,
	}
	doc := &model.SessionDocument{
		SchemaVersion: model.SessionDocSchemaVersion,
		Session:       session,
	}
	if err := r.queue.Save(ctx, doc); err != nil {
		return model.GameSession{}, fmt.Errorf("recorder: persist new session: %w", err)
	}

	r.logger.Info("recorder: session started",
		"session_key", session.SessionKey, "fixture_id", fixtureID)
	r.signal()
	return session, nil
}

// RecordEvent appends one event to the session's log, assigning the next
// sequence number, and marks the session pending sync. Returns as soon as
// the local write is durable.
func (r *Recorder) RecordEvent(ctx context.Context, sessionKey string, input EventInput) (model.GameEvent, error) {
	unlock := r.queue.LockSession(sessionKey)
	defer unlock()

	doc, err := r.queue.Get(ctx, sessionKey)
	if err != nil {
		return model.GameEvent{}, fmt.Errorf("recorder: record event: %w", err)
	}

	now := r.now()
	event := model.GameEvent{
		ID:             uuid.New(),
		SessionKey:     sessionKey,
		Seq:            doc.Session.LastSeq + 1,
		Kind:           input.Kind,
		Value:          input.Value,
		Quarter:        input.Quarter,
		Clock:          input.Clock,
		Opponent:       input.Opponent,
		PlayerID:       input.PlayerID,
		OpponentJersey: input.OpponentJersey,
		Metadata:       input.Metadata,
		SyncStatus:     model.SyncPending,
		CreatedAt:      now,
	}

	doc.Events = append(doc.Events, event)
	doc.Session.LastSeq = event.Seq
	doc.Session.SyncStatus = model.SyncPending
	doc.Session.LastModified = now

	if err := r.queue.Save(ctx, doc); err != nil {
		return model.GameEvent{}, fmt.Errorf("recorder: persist event: %w", err)
	}

	r.signal()
	return event, nil
}

// UpdateState merges a partial state patch into the session's snapshot
// under the same pending marking as event writes.
func (r *Recorder) UpdateState(ctx context.Context, sessionKey string, patch model.StatePatch) (model.GameState, error) {
	unlock := r.queue.LockSession(sessionKey)
	defer unlock()

	doc, err := r.queue.Get(ctx, sessionKey)
	if err != nil {
		return model.GameState{}, fmt.Errorf("recorder: update state: %w", err)
	}

	patch.Apply(&doc.Session.State)
	doc.Session.SyncStatus = model.SyncPending
	doc.Session.LastModified = r.now()

	if err := r.queue.Save(ctx, doc); err != nil {
		return model.GameState{}, fmt.Errorf("recorder: persist state: %w", err)
	}

	r.signal()
	return doc.Session.State, nil
}

// EndSession marks the session inactive, runs a final aggregation pass over
// its full log, and makes one bounded synchronous sync attempt. A failed
// attempt leaves the session queued for the next periodic tick; EndSession
// never blocks indefinitely on the network.
func (r *Recorder) EndSession(ctx context.Context, sessionKey string) (*stats.Totals, error) {
	unlock := r.queue.LockSession(sessionKey)

	doc, err := r.queue.Get(ctx, sessionKey)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("recorder: end session: %w", err)
	}

	now := r.now()
	doc.Session.Active = false
	doc.Session.EndedAt = &now
	doc.Session.SyncStatus = model.SyncPending
	doc.Session.LastModified = now

	if err := r.queue.Save(ctx, doc); err != nil {
		unlock()
		return nil, fmt.Errorf("recorder: persist session end: %w", err)
	}
	unlock()

	totals := stats.Aggregate(doc.Events)

	if r.syncNow != nil {
		if err := r.syncNow(ctx); err != nil {
			r.logger.Warn("recorder: final sync attempt failed, session stays queued",
				"session_key", sessionKey, "error", err)
		}
	}

	r.logger.Info("recorder: session ended",
		"session_key", sessionKey,
		"events", len(doc.Events),
		"margin", totals.Margin,
	)
	return totals, nil
}
