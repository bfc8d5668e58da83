// Package syncer drains the local queue to the remote store. It owns the
// session sync state machine: pending sessions move through syncing to
// synced, failures park at failed and rejoin the pending set on the next
// pass. All remote writes are idempotent, so a pass interrupted at any
// point is safe to repeat.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/queue"
)

const (
	// DefaultInterval is the periodic sync cadence.
	DefaultInterval = 30 * time.Second
	// DefaultDebounce is how long after the last local write a triggered
	// sync waits, so a burst of recorded events syncs as one batch.
	DefaultDebounce = 2 * time.Second
	// DefaultCallTimeout bounds each remote call so a dead uplink surfaces
	// as a failed session instead of a hung pass.
	DefaultCallTimeout = 10 * time.Second
	// DefaultMaxConcurrent caps sessions synced in parallel per pass.
	DefaultMaxConcurrent = 4
)

// RemoteStore is the subset of the remote layer the sync engine writes to.
type RemoteStore interface {
	UpsertSession(ctx context.Context, session model.GameSession) error
	InsertEvents(ctx context.Context, events []model.GameEvent) (int64, error)
}

// Counters are cumulative sync statistics, safe for concurrent reads.
// Telemetry observes these via gauge callbacks.
type Counters struct {
	SessionsSynced atomic.Int64
	EventsSynced   atomic.Int64
	Failures       atomic.Int64
}

// Syncer pushes queued sessions to the remote store.
type Syncer struct {
	queue  *queue.Queue
	remote RemoteStore
	logger *slog.Logger

	interval      time.Duration
	debounce      time.Duration
	callTimeout   time.Duration
	maxConcurrent int

	// notifyCh carries local-write signals; buffered so Notify never
	// blocks the recorder.
	notifyCh chan struct{}
	// connCh reports connectivity changes; true means the uplink came back.
	connCh <-chan bool

	// passMu enforces one sync pass at a time. Triggered passes skip when
	// one is in flight; SyncNow waits.
	passMu sync.Mutex

	counters Counters
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithInterval sets the periodic sync cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

// WithDebounce sets the post-write debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) { s.debounce = d }
}

// WithCallTimeout sets the per-remote-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.callTimeout = d }
}

// WithMaxConcurrent caps sessions synced in parallel.
func WithMaxConcurrent(n int) Option {
	return func(s *Syncer) { s.maxConcurrent = n }
}

// WithConnectivity attaches a connectivity change feed. A true value
// triggers an immediate sync pass.
func WithConnectivity(ch <-chan bool) Option {
	return func(s *Syncer) { s.connCh = ch }
}

// New creates a Syncer over the queue and remote store.
func New(q *queue.Queue, remote RemoteStore, logger *slog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		queue:         q,
		remote:        remote,
		logger:        logger,
		interval:      DefaultInterval,
		debounce:      DefaultDebounce,
		callTimeout:   DefaultCallTimeout,
		maxConcurrent: DefaultMaxConcurrent,
		notifyCh:      make(chan struct{}, 1),
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Counters exposes cumulative sync statistics.
func (s *Syncer) Counters() *Counters {
	return &s.counters
}

// Notify signals that local state changed. Never blocks; coalesces with
// any signal already queued.
func (s *Syncer) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Run drives the sync loop until ctx is cancelled: a periodic tick, a
// debounced trigger after local writes, and an immediate pass when
// connectivity is restored.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.notifyCh:
			// Restart the window; only the last write in a burst arms it.
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(s.debounce)

		case <-debounce.C:
			s.tryPass(ctx)

		case <-ticker.C:
			s.tryPass(ctx)

		case online, ok := <-s.connCh:
			if !ok {
				s.connCh = nil
				continue
			}
			if online {
				s.logger.Info("syncer: connectivity restored, syncing")
				s.tryPass(ctx)
			}
		}
	}
}

// tryPass runs a sync pass unless one is already in flight.
func (s *Syncer) tryPass(ctx context.Context) {
	if !s.passMu.TryLock() {
		s.logger.Debug("syncer: pass already in flight, skipping")
		return
	}
	defer s.passMu.Unlock()
	if err := s.pass(ctx); err != nil {
		s.logger.Warn("syncer: pass failed", "error", err)
	}
}

// SyncNow runs one full sync pass, waiting for any in-flight pass first.
// Used for the bounded final attempt when a session ends.
func (s *Syncer) SyncNow(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.pass(ctx)
}

func (s *Syncer) pass(ctx context.Context) error {
	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return fmt.Errorf("syncer: list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, doc := range pending {
		g.Go(func() error {
			if err := s.syncSession(gctx, doc); err != nil {
				s.counters.Failures.Add(1)
				s.logger.Warn("syncer: session sync failed",
					"session_key", doc.Session.SessionKey,
					"retry_count", doc.Session.RetryCount+1,
					"error", err)
			}
			// Session failures never abort the pass; other sessions
			// still sync.
			return nil
		})
	}
	return g.Wait()
}

// syncSession pushes one session snapshot and its unsynced events, then
// reconciles queue state. Events recorded while the remote calls were in
// flight keep the session pending for the next pass.
func (s *Syncer) syncSession(ctx context.Context, doc *model.SessionDocument) error {
	session := doc.Session
	events := doc.PendingEvents()

	s.markStatus(ctx, session.SessionKey, model.SyncSyncing)

	err := s.push(ctx, session, events)
	if err != nil {
		s.markFailed(ctx, session.SessionKey)
		return err
	}

	s.markSynced(ctx, session.SessionKey, session.LastSeq, session.LastModified)
	s.counters.SessionsSynced.Add(1)
	s.counters.EventsSynced.Add(int64(len(events)))
	return nil
}

func (s *Syncer) push(ctx context.Context, session model.GameSession, events []model.GameEvent) error {
	upCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err := s.remote.UpsertSession(upCtx, session)
	cancel()
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	evCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	_, err = s.remote.InsertEvents(evCtx, events)
	cancel()
	if err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

// markStatus transitions the persisted session status. Best effort: queue
// write failures here are logged, not fatal, because the push itself
// re-derives everything from the document.
func (s *Syncer) markStatus(ctx context.Context, sessionKey string, status model.SyncStatus) {
	unlock := s.queue.LockSession(sessionKey)
	defer unlock()

	doc, err := s.queue.Get(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("syncer: load for status mark", "session_key", sessionKey, "error", err)
		return
	}
	doc.Session.SyncStatus = status
	if err := s.queue.Save(ctx, doc); err != nil {
		s.logger.Warn("syncer: persist status mark", "session_key", sessionKey, "error", err)
	}
}

func (s *Syncer) markFailed(ctx context.Context, sessionKey string) {
	unlock := s.queue.LockSession(sessionKey)
	defer unlock()

	doc, err := s.queue.Get(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("syncer: load for failure mark", "session_key", sessionKey, "error", err)
		return
	}
	doc.Session.SyncStatus = model.SyncFailed
	doc.Session.RetryCount++
	if err := s.queue.Save(ctx, doc); err != nil {
		s.logger.Warn("syncer: persist failure mark", "session_key", sessionKey, "error", err)
	}
}

// markSynced flags events up to syncedThrough as synced. The session only
// turns synced when nothing newer was recorded during the push; a write
// that landed mid-push leaves it pending for the next pass.
func (s *Syncer) markSynced(ctx context.Context, sessionKey string, syncedThrough int64, asOf time.Time) {
	unlock := s.queue.LockSession(sessionKey)
	defer unlock()

	doc, err := s.queue.Get(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("syncer: load for synced mark", "session_key", sessionKey, "error", err)
		return
	}

	for i := range doc.Events {
		if doc.Events[i].Seq <= syncedThrough {
			doc.Events[i].SyncStatus = model.SyncSynced
		}
	}
	if doc.Session.LastSeq <= syncedThrough && !doc.Session.LastModified.After(asOf) {
		doc.Session.SyncStatus = model.SyncSynced
		doc.Session.RetryCount = 0
	} else {
		doc.Session.SyncStatus = model.SyncPending
	}

	if err := s.queue.Save(ctx, doc); err != nil {
		s.logger.Warn("syncer: persist synced mark", "session_key", sessionKey, "error", err)
	}
}
