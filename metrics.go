package courtside

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/hoopdeck/courtside/internal/telemetry"
)

// registerMetrics exposes queue depth and sync progress as observable
// gauges. No-ops when OTEL is not configured (the global provider is then
// a no-op).
func (a *App) registerMetrics() {
	meter := telemetry.Meter("courtside")

	queueTotal, err1 := meter.Int64ObservableGauge("courtside.queue.sessions",
		metric.WithDescription("Sessions held in the local queue"))
	queueUnsynced, err2 := meter.Int64ObservableGauge("courtside.queue.unsynced_sessions",
		metric.WithDescription("Locally queued sessions not yet fully synced"))
	sessionsSynced, err3 := meter.Int64ObservableCounter("courtside.sync.sessions_synced",
		metric.WithDescription("Session sync passes completed successfully"))
	eventsSynced, err4 := meter.Int64ObservableCounter("courtside.sync.events_synced",
		metric.WithDescription("Events flushed to the remote store"))
	syncFailures, err5 := meter.Int64ObservableCounter("courtside.sync.failures",
		metric.WithDescription("Session sync attempts that failed"))
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			a.logger.Warn("metric registration failed", "error", err)
			return
		}
	}

	counters := a.syncer.Counters()
	_, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		total, unsynced, err := a.queue.Count(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(queueTotal, int64(total))
		o.ObserveInt64(queueUnsynced, int64(unsynced))
		o.ObserveInt64(sessionsSynced, counters.SessionsSynced.Load())
		o.ObserveInt64(eventsSynced, counters.EventsSynced.Load())
		o.ObserveInt64(syncFailures, counters.Failures.Load())
		return nil
	}, queueTotal, queueUnsynced, sessionsSynced, eventsSynced, syncFailures)
	if err != nil {
		a.logger.Warn("metric callback registration failed", "error", err)
	}
}
