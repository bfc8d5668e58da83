// Package queue is the process-durable local store for sessions and their
// unsynced events. It is the only shared mutable state in the core: every
// mutation round-trips one session document through a single load/save
// cycle, serialized internally, so callers never race on the underlying
// storage primitive.
//
// The backing store is a client-local SQLite file (modernc.org/sqlite,
// CGO-free). Each row holds one versioned JSON session document plus a few
// denormalized columns for lookup and prune ordering; the document is the
// source of truth.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hoopdeck/courtside/internal/model"
)

// DefaultMaxSessions bounds local storage growth; least-recently-modified
// synced sessions beyond this cap are evicted.
const DefaultMaxSessions = 10

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key   TEXT PRIMARY KEY,
	fixture_id    TEXT NOT NULL,
	active        INTEGER NOT NULL,
	sync_status   TEXT NOT NULL,
	doc           TEXT NOT NULL,
	last_modified INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_fixture ON sessions (fixture_id, active);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (sync_status);
`

// Queue is the local durable session queue.
type Queue struct {
	db          *sql.DB
	logger      *slog.Logger
	maxSessions int

	// mu guards locks. Session mutations are load/save cycles; the
	// recorder and the sync engine both take the session's lock around
	// theirs so neither clobbers the other's writes.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// saveFn is the raw document write; swapped in tests to exercise the
	// quota retry path.
	saveFn func(ctx context.Context, doc *model.SessionDocument) error
}

// Open opens (creating if needed) the queue database at path.
func Open(path string, maxSessions int, logger *slog.Logger) (*Queue, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	// The queue is single-writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("queue: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("queue: create schema: %w", err)
	}

	q := &Queue{
		db:          db,
		logger:      logger,
		maxSessions: maxSessions,
		locks:       make(map[string]*sync.Mutex),
	}
	q.saveFn = q.save
	return q, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// LockSession takes the named session's mutation lock and returns the
// unlock func. Hold it across a Get/modify/Save cycle; locks for different
// sessions are independent.
func (q *Queue) LockSession(sessionKey string) func() {
	q.mu.Lock()
	mu, ok := q.locks[sessionKey]
	if !ok {
		mu = &sync.Mutex{}
		q.locks[sessionKey] = mu
	}
	q.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Load returns every persisted session document keyed by session key,
// migrating older document schemas on the way out.
func (q *Queue) Load(ctx context.Context) (map[string]*model.SessionDocument, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT doc FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("queue: load: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]*model.SessionDocument)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("queue: scan document: %w", err)
		}
		doc, err := migrateDocument(raw)
		if err != nil {
			// A corrupted document must not poison the whole queue.
			q.logger.Warn("queue: skipping unreadable session document", "error", err)
			continue
		}
		docs[doc.Session.SessionKey] = doc
	}
	return docs, rows.Err()
}

// Get returns one session document by key.
func (q *Queue) Get(ctx context.Context, sessionKey string) (*model.SessionDocument, error) {
	var raw []byte
	err := q.db.QueryRowContext(ctx,
		`SELECT doc FROM sessions WHERE session_key = ?`, sessionKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue: %w: %s", ErrSessionNotFound, sessionKey)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: get %s: %w", sessionKey, err)
	}
	return migrateDocument(raw)
}

// ActiveByFixture returns the active session for a fixture, or nil when
// none exists. At most one active session per fixture is an invariant the
// recorder maintains through this lookup.
func (q *Queue) ActiveByFixture(ctx context.Context, fixtureID string) (*model.SessionDocument, error) {
	var raw []byte
	err := q.db.QueryRowContext(ctx,
		`SELECT doc FROM sessions WHERE fixture_id = ? AND active = 1 LIMIT 1`, fixtureID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: active by fixture %s: %w", fixtureID, err)
	}
	return migrateDocument(raw)
}

// Save upserts one session document. When storage is exhausted it prunes
// synced sessions past the cap and retries the write once before giving
// up; any other failure surfaces immediately.
func (q *Queue) Save(ctx context.Context, doc *model.SessionDocument) error {
	err := q.saveFn(ctx, doc)
	if err == nil {
		return nil
	}
	if !isStorageFull(err) {
		return fmt.Errorf("queue: save %s: %w", doc.Session.SessionKey, err)
	}

	q.logger.Warn("queue: storage full, pruning and retrying once",
		"session_key", doc.Session.SessionKey, "error", err)
	if _, pruneErr := q.Prune(ctx, q.maxSessions); pruneErr != nil {
		q.logger.Warn("queue: prune during save retry failed", "error", pruneErr)
	}
	if err := q.saveFn(ctx, doc); err != nil {
		return fmt.Errorf("queue: save %s: %w", doc.Session.SessionKey, err)
	}
	return nil
}

// isStorageFull reports whether err is SQLite's out-of-space condition.
// The driver error code is checked first; the message match covers errors
// that arrive flattened through database/sql.
func isStorageFull(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_FULL
	}
	return strings.Contains(err.Error(), "database or disk is full")
}

func (q *Queue) save(ctx context.Context, doc *model.SessionDocument) error {
	doc.SchemaVersion = model.SessionDocSchemaVersion
	raw, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	active := 0
	if doc.Session.Active {
		active = 1
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO sessions (session_key, fixture_id, active, sync_status, doc, last_modified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_key) DO UPDATE SET
			fixture_id = excluded.fixture_id,
			active = excluded.active,
			sync_status = excluded.sync_status,
			doc = excluded.doc,
			last_modified = excluded.last_modified`,
		doc.Session.SessionKey,
		doc.Session.FixtureID,
		active,
		string(doc.Session.SyncStatus),
		raw,
		doc.Session.LastModified.UnixMilli(),
	)
	return err
}

// Pending returns documents whose sessions still need a sync pass
// (pending or failed), ordered oldest-modified first.
func (q *Queue) Pending(ctx context.Context) ([]*model.SessionDocument, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT doc FROM sessions WHERE sync_status IN (?, ?) ORDER BY last_modified ASC`,
		string(model.SyncPending), string(model.SyncFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: pending: %w", err)
	}
	defer rows.Close()

	var docs []*model.SessionDocument
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("queue: scan pending document: %w", err)
		}
		doc, err := migrateDocument(raw)
		if err != nil {
			q.logger.Warn("queue: skipping unreadable pending document", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Prune evicts least-recently-modified sessions beyond maxSessions.
// Only synced sessions are eviction-safe; pending or failed sessions are
// never dropped, so no event is ever lost. Returns the number evicted.
func (q *Queue) Prune(ctx context.Context, maxSessions int) (int, error) {
	if maxSessions <= 0 {
		maxSessions = q.maxSessions
	}

	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("queue: prune count: %w", err)
	}
	excess := total - maxSessions
	if excess <= 0 {
		return 0, nil
	}

	res, err := q.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE session_key IN (
			SELECT session_key FROM sessions
			WHERE sync_status = ? AND active = 0
			ORDER BY last_modified ASC
			LIMIT ?
		)`,
		string(model.SyncSynced), excess,
	)
	if err != nil {
		return 0, fmt.Errorf("queue: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue: prune rows affected: %w", err)
	}
	if n > 0 {
		q.logger.Info("queue: pruned synced sessions", "evicted", n, "cap", maxSessions)
	}
	return int(n), nil
}

// Count returns the number of stored sessions, and how many of those are
// not yet synced. Used by the telemetry gauges.
func (q *Queue) Count(ctx context.Context) (total, unsynced int, err error) {
	err = q.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN sync_status != ? THEN 1 ELSE 0 END), 0)
		FROM sessions`, string(model.SyncSynced),
	).Scan(&total, &unsynced)
	if err != nil {
		return 0, 0, fmt.Errorf("queue: count: %w", err)
	}
	return total, unsynced, nil
}
