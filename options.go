package courtside

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	queuePath    string
	databaseURL  string
	redisURL     string
	logger       *slog.Logger
	version      string
	connectivity ConnectivityMonitor
	now          func() time.Time
	syncInterval time.Duration
	syncDebounce time.Duration
}

// WithQueuePath overrides the local queue file from config (COURTSIDE_QUEUE_PATH env var).
func WithQueuePath(path string) Option {
	return func(o *resolvedOptions) { o.queuePath = path }
}

// WithDatabaseURL overrides the remote store connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithRedisURL overrides the report cache connection string from config (REDIS_URL env var).
func WithRedisURL(url string) Option {
	return func(o *resolvedOptions) { o.redisURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithConnectivityMonitor attaches a connectivity feed. When the monitor
// reports the uplink came back, the sync engine runs immediately instead
// of waiting for the next periodic tick.
func WithConnectivityMonitor(m ConnectivityMonitor) Option {
	return func(o *resolvedOptions) { o.connectivity = m }
}

// WithSyncIntervals overrides the periodic and debounce sync timers from
// config (COURTSIDE_SYNC_INTERVAL / COURTSIDE_SYNC_DEBOUNCE env vars).
// The debounce must stay shorter than the interval.
func WithSyncIntervals(interval, debounce time.Duration) Option {
	return func(o *resolvedOptions) {
		o.syncInterval = interval
		o.syncDebounce = debounce
	}
}

// WithClock injects the time source used for session keys, event stamps
// and goal snapshots. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.now = now }
}
