// Package courtside is the offline-first game tracking core: a durable
// local event queue, an idempotent sync engine against Postgres, and
// replay-based stat aggregation, goal evaluation and game reports.
//
//	app, err := courtside.New(
//	    courtside.WithLogger(logger),
//	    courtside.WithVersion(version),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// Recording is always local and never blocks on the network; the sync
// engine drains the queue in the background. The import graph enforces a
// strict no-cycle rule: courtside (root) imports internal/*, but
// internal/* never imports courtside (root).
package courtside

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/hoopdeck/courtside/internal/cache"
	"github.com/hoopdeck/courtside/internal/config"
	"github.com/hoopdeck/courtside/internal/goals"
	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/queue"
	"github.com/hoopdeck/courtside/internal/recorder"
	"github.com/hoopdeck/courtside/internal/remote"
	"github.com/hoopdeck/courtside/internal/report"
	"github.com/hoopdeck/courtside/internal/stats"
	"github.com/hoopdeck/courtside/internal/syncer"
	"github.com/hoopdeck/courtside/internal/telemetry"
)

// App wires the recording core. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	queue        *queue.Queue
	remote       *remoteLink
	recorder     *recorder.Recorder
	syncer       *syncer.Syncer
	reporter     *report.Reporter
	reportCache  *cache.ReportCache // nil when Redis is not configured
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	now          func() time.Time
	version      string
}

// New initialises the app: opens the local queue and wires all subsystems.
// The remote store is dialed lazily, so New succeeds with no connectivity
// at all and recording starts offline. It does NOT start any goroutines;
// call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.queuePath != "" {
		cfg.QueuePath = o.queuePath
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
	if o.syncInterval > 0 {
		cfg.SyncInterval = o.syncInterval
	}
	if o.syncDebounce > 0 {
		cfg.SyncDebounce = o.syncDebounce
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("courtside starting", "version", version, "queue_path", cfg.QueuePath)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Local queue first: recording must work with no uplink at all.
	q, err := queue.Open(cfg.QueuePath, cfg.MaxSessions, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("queue: %w", err)
	}

	// The remote store connects lazily: an unreachable uplink means an
	// offline start, never a construction failure. One bounded attempt
	// here so a healthy network gets migrations out of the way early.
	link := newRemoteLink(cfg.DatabaseURL, logger)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := link.get(connectCtx); err != nil {
		logger.Warn("remote store unreachable, starting offline", "error", err)
	}
	cancelConnect()

	syncOpts := []syncer.Option{
		syncer.WithInterval(cfg.SyncInterval),
		syncer.WithDebounce(cfg.SyncDebounce),
		syncer.WithCallTimeout(cfg.SyncCallTimeout),
		syncer.WithMaxConcurrent(cfg.SyncMaxConcurrent),
	}
	if o.connectivity != nil {
		syncOpts = append(syncOpts, syncer.WithConnectivity(o.connectivity.Changes()))
	}
	sync := syncer.New(q, retryingRemote{link}, logger, syncOpts...)

	recOpts := []recorder.Option{
		recorder.WithSyncTriggers(sync.Notify, sync.SyncNow),
	}
	if o.now != nil {
		recOpts = append(recOpts, recorder.WithClock(o.now))
	}
	rec := recorder.New(q, logger, recOpts...)

	var reportCache *cache.ReportCache
	reportOpts := []report.Option{}
	if cfg.RedisURL != "" {
		reportCache, err = cache.New(cfg.RedisURL, cfg.ReportCacheTTL)
		if err != nil {
			// Degraded, not fatal: reports regenerate without the cache.
			logger.Warn("report cache unavailable, continuing without it", "error", err)
			reportCache = nil
		} else {
			reportOpts = append(reportOpts, report.WithCache(reportCache))
			logger.Info("report cache: enabled")
		}
	}
	if o.now != nil {
		reportOpts = append(reportOpts, report.WithClock(o.now))
	}
	reporter := report.New(logger, reportOpts...)

	app := &App{
		cfg:          cfg,
		queue:        q,
		remote:       link,
		recorder:     rec,
		syncer:       sync,
		reporter:     reporter,
		reportCache:  reportCache,
		otelShutdown: otelShutdown,
		logger:       logger,
		now:          o.now,
		version:      version,
	}
	app.registerMetrics()
	return app, nil
}

// Run drives the sync engine until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("courtside running", "version", a.version)

	err := a.syncer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("sync engine stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx)
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	// One last drain so a clean shutdown leaves nothing queued when the
	// uplink is healthy.
	if err := a.syncer.SyncNow(ctx); err != nil {
		a.logger.Warn("final sync on shutdown failed", "error", err)
	}

	if a.reportCache != nil {
		if err := a.reportCache.Close(); err != nil {
			a.logger.Warn("close report cache", "error", err)
		}
	}
	a.remote.close()
	if err := a.queue.Close(); err != nil {
		a.logger.Warn("close queue", "error", err)
	}
	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
	a.logger.Info("courtside stopped")
}

// StartSession resumes the active session for a fixture or starts a new one.
func (a *App) StartSession(ctx context.Context, fixtureID string, externalGameID *string, initial model.GameState) (model.GameSession, error) {
	return a.recorder.StartSession(ctx, fixtureID, externalGameID, initial)
}

// RecordEvent appends one event to a session's log. Local-only and
// non-blocking with respect to the network.
func (a *App) RecordEvent(ctx context.Context, sessionKey string, input recorder.EventInput) (model.GameEvent, error) {
	return a.recorder.RecordEvent(ctx, sessionKey, input)
}

// UpdateState merges a partial game-state patch into a session.
func (a *App) UpdateState(ctx context.Context, sessionKey string, patch model.StatePatch) (model.GameState, error) {
	return a.recorder.UpdateState(ctx, sessionKey, patch)
}

// EndSession closes a session, returning its final aggregated totals after
// one bounded sync attempt.
func (a *App) EndSession(ctx context.Context, sessionKey string) (*stats.Totals, error) {
	return a.recorder.EndSession(ctx, sessionKey)
}

// Report builds the game report for a session, preferring the local queue
// and falling back to the remote store for sessions already pruned locally.
func (a *App) Report(ctx context.Context, sessionKey string, roster []model.Player) (*report.GameReport, error) {
	rep, err := a.reporter.FromLocal(ctx, a.queue, sessionKey, roster)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, queue.ErrSessionNotFound) {
		return nil, err
	}
	store, rerr := a.remote.get(ctx)
	if rerr != nil {
		return nil, fmt.Errorf("report: session pruned locally and remote store unavailable: %w", rerr)
	}
	return a.reporter.FromRemote(ctx, store, sessionKey, roster)
}

// GoalEvaluation is one goal's outcome from an evaluation pass.
type GoalEvaluation struct {
	Goal       model.Goal
	Metric     model.Metric
	Progress   model.GoalProgress
	Transition bool
	// Skipped is true when the goal's window had no computable value; no
	// snapshot was recorded.
	Skipped bool
}

// EvaluateGoals runs every active goal against session history ending at
// currentSessionKey. The current session's log is read locally when
// available so evaluation works before sync completes; goal and metric
// configuration always comes from the remote store, so evaluation needs
// the uplink.
func (a *App) EvaluateGoals(ctx context.Context, currentSessionKey string) ([]GoalEvaluation, error) {
	store, err := a.remote.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate goals: remote store unavailable: %w", err)
	}

	activeGoals, err := store.ListActiveGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate goals: %w", err)
	}
	if len(activeGoals) == 0 {
		return nil, nil
	}

	metrics, err := store.ListMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate goals: %w", err)
	}
	metricsByID := make(map[string]model.Metric, len(metrics))
	for _, m := range metrics {
		metricsByID[m.ID.String()] = m
	}

	recent, err := a.sessionHistory(ctx, store, currentSessionKey)
	if err != nil {
		return nil, fmt.Errorf("evaluate goals: %w", err)
	}

	evaluator := goals.NewEvaluator(store, a.now, a.logger)
	results := make([]GoalEvaluation, 0, len(activeGoals))
	for _, goal := range activeGoals {
		metric, ok := metricsByID[goal.MetricID.String()]
		if !ok {
			a.logger.Warn("goal references unknown metric, skipping",
				"goal_id", goal.ID, "metric_id", goal.MetricID)
			continue
		}

		progress, transition, err := evaluator.Evaluate(ctx, goal, metric, recent)
		if err != nil {
			if errors.Is(err, goals.ErrNotComputable) {
				results = append(results, GoalEvaluation{Goal: goal, Metric: metric, Skipped: true})
				continue
			}
			return nil, err
		}
		results = append(results, GoalEvaluation{
			Goal:       goal,
			Metric:     metric,
			Progress:   progress,
			Transition: transition,
		})
	}
	return results, nil
}

// sessionHistory assembles replayed totals most recent first, with the
// current session at the head. The current log comes from the local queue
// when present (it may not have synced yet); earlier sessions come from
// the remote store.
func (a *App) sessionHistory(ctx context.Context, store *remote.Store, currentSessionKey string) ([]goals.SessionStats, error) {
	var history []goals.SessionStats

	if doc, err := a.queue.Get(ctx, currentSessionKey); err == nil {
		history = append(history, goals.SessionStats{
			SessionKey: currentSessionKey,
			Totals:     stats.Aggregate(doc.Events),
		})
	} else if !errors.Is(err, queue.ErrSessionNotFound) {
		return nil, err
	} else {
		_, events, err := store.GetSessionWithEvents(ctx, currentSessionKey)
		if err != nil {
			return nil, err
		}
		history = append(history, goals.SessionStats{
			SessionKey: currentSessionKey,
			Totals:     stats.Aggregate(events),
		})
	}

	sessions, err := store.ListRecentSessions(ctx, a.cfg.GoalHistoryLimit)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.SessionKey == currentSessionKey {
			continue
		}
		events, err := store.GetEvents(ctx, s.SessionKey)
		if err != nil {
			return nil, err
		}
		history = append(history, goals.SessionStats{
			SessionKey: s.SessionKey,
			Totals:     stats.Aggregate(events),
		})
	}
	return history, nil
}

// Session returns a locally queued session, including its sync status and
// retry count so hosts can surface a persistent-failure warning.
func (a *App) Session(ctx context.Context, sessionKey string) (model.GameSession, error) {
	doc, err := a.queue.Get(ctx, sessionKey)
	if err != nil {
		return model.GameSession{}, err
	}
	return doc.Session, nil
}

// SyncNow forces one full sync pass.
func (a *App) SyncNow(ctx context.Context) error {
	return a.syncer.SyncNow(ctx)
}

// QueueCounts reports total and unsynced locally stored sessions.
func (a *App) QueueCounts(ctx context.Context) (total, unsynced int, err error) {
	return a.queue.Count(ctx)
}
