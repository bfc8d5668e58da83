package courtside

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/remote"
	"github.com/hoopdeck/courtside/migrations"
)

// remoteLink dials the remote store on first use instead of at startup.
// Recording must come up with no uplink at all, so an unreachable store is
// an offline condition, never a construction failure. The connection is
// established by whichever caller first finds the network back (normally a
// sync pass), and migrations run on that first successful connection.
type remoteLink struct {
	dsn    string
	logger *slog.Logger

	mu    sync.Mutex
	store *remote.Store
}

func newRemoteLink(dsn string, logger *slog.Logger) *remoteLink {
	return &remoteLink{dsn: dsn, logger: logger}
}

// get returns the connected store, dialing and migrating first when
// needed. Safe for concurrent use; a failed dial leaves the link
// disconnected so the next caller tries again.
func (l *remoteLink) get(ctx context.Context) (*remote.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}

	store, err := remote.New(ctx, l.dsn, l.logger)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(ctx, migrations.FS); err != nil {
		store.Close()
		return nil, err
	}
	l.store = store
	l.logger.Info("remote store connected")
	return store, nil
}

func (l *remoteLink) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		l.store.Close()
		l.store = nil
	}
}

// retryingRemote adapts the link to the sync engine's store contract,
// retrying transient Postgres conflicts inside one sync attempt instead of
// parking the session as failed. An unreachable store surfaces as a plain
// error; the sync engine marks the session failed and the next tick
// retries.
type retryingRemote struct {
	link *remoteLink
}

func (r retryingRemote) UpsertSession(ctx context.Context, session model.GameSession) error {
	store, err := r.link.get(ctx)
	if err != nil {
		return err
	}
	return remote.WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		return store.UpsertSession(ctx, session)
	})
}

func (r retryingRemote) InsertEvents(ctx context.Context, events []model.GameEvent) (int64, error) {
	store, err := r.link.get(ctx)
	if err != nil {
		return 0, err
	}
	var inserted int64
	err = remote.WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		var callErr error
		inserted, callErr = store.InsertEvents(ctx, events)
		return callErr
	})
	return inserted, err
}
