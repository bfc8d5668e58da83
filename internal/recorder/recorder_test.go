package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdeck/courtside/internal/model"
	"github.com/hoopdeck/courtside/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(filepath.Join(t.TempDir(), "courtside.db"), queue.DefaultMaxSessions, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecorder_StartSessionCreatesNew(t *testing.T) {
	q := openTestQueue(t)
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	r := New(q, testLogger(), WithClock(fixedClock(at)))

	session, err := r.StartSession(context.Background(), "fixture-42", nil, model.GameState{Quarter: 1, Clock: "10:00"})
	require.NoError(t, err)

	assert.Equal(t, "fixture-42-20260314T193000Z", session.SessionKey)
	assert.True(t, session.Active)
	assert.Equal(t, model.SyncPending, session.SyncStatus)
	assert.Equal(t, int64(0), session.LastSeq)

	doc, err := q.Get(context.Background(), session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, "fixture-42", doc.Session.FixtureID)
	assert.Empty(t, doc.Events)
}

func TestRecorder_StartSessionResumesActive(t *testing.T) {
	q := openTestQueue(t)
	r := New(q, testLogger())

	first, err := r.StartSession(context.Background(), "fixture-42", nil, model.GameState{Quarter: 1})
	require.NoError(t, err)

	_, err = r.RecordEvent(context.Background(), first.SessionKey, EventInput{Kind: model.EventFieldGoalMade, Quarter: 1})
	require.NoError(t, err)

	resumed, err := r.StartSession(context.Background(), "fixture-42", nil, model.GameState{})
	require.NoError(t, err)

	assert.Equal(t, first.SessionKey, resumed.SessionKey)
	assert.Equal(t, int64(1), resumed.LastSeq)
}

func TestRecorder_RecordEventAssignsMonotonicSeq(t *testing.T) {
	q := openTestQueue(t)
	r := New(q, testLogger())

	session, err := r.StartSession(context.Background(), "fixture-7", nil, model.GameState{})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		ev, err := r.RecordEvent(context.Background(), session.SessionKey, EventInput{Kind: model.EventRebound, Quarter: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(i), ev.Seq)
		assert.Equal(t, model.SyncPending, ev.SyncStatus)
		assert.NotEqual(t, uuid.Nil, ev.ID)
	}

	doc, err := q.Get(context.Background(), session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Session.LastSeq)
	assert.Len(t, doc.Events, 5)
}

func TestRecorder_RecordEventUnknownSession(t *testing.T) {
	q := openTestQueue(t)
	r := New(q, testLogger())

	_, err := r.RecordEvent(context.Background(), "no-such-session", EventInput{Kind: model.EventSteal})
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
}

func TestRecorder_UpdateStateMergesPatch(t *testing.T) {
	q := openTestQueue(t)
	r := New(q, testLogger())

	session, err := r.StartSession(context.Background(), "fixture-7", nil, model.GameState{Quarter: 1, Clock: "10:00", TimeoutsOwn: 4})
	require.NoError(t, err)

	quarter := 2
	score := 18
	state, err := r.UpdateState(context.Background(), session.SessionKey, model.StatePatch{Quarter: &quarter, ScoreOwn: &score})
	require.NoError(t, err)

	assert.Equal(t, 2, state.Quarter)
	assert.Equal(t, 18, state.ScoreOwn)
	assert.Equal(t, "10:00", state.Clock)
	assert.Equal(t, 4, state.TimeoutsOwn)
}

func TestRecorder_EndSessionAggregatesAndStaysQueuedOnSyncFailure(t *testing.T) {
	q := openTestQueue(t)
	syncErr := errors.New("remote unreachable")
	r := New(q, testLogger(), WithSyncTriggers(func() {}, func(context.Context) error { return syncErr }))

	session, err := r.StartSession(context.Background(), "fixture-9", nil, model.GameState{})
	require.NoError(t, err)

	player := uuid.New()
	_, err = r.RecordEvent(context.Background(), session.SessionKey, EventInput{Kind: model.EventThreePointMade, Quarter: 1, PlayerID: &player})
	require.NoError(t, err)
	_, err = r.RecordEvent(context.Background(), session.SessionKey, EventInput{Kind: model.EventFieldGoalMade, Quarter: 1, Opponent: true})
	require.NoError(t, err)

	totals, err := r.EndSession(context.Background(), session.SessionKey)
	require.NoError(t, err)

	assert.Equal(t, 3, totals.Own.Points)
	assert.Equal(t, 2, totals.Opponent.Points)
	assert.Equal(t, 1, totals.Margin)

	doc, err := q.Get(context.Background(), session.SessionKey)
	require.NoError(t, err)
	assert.False(t, doc.Session.Active)
	require.NotNil(t, doc.Session.EndedAt)
	assert.Equal(t, model.SyncPending, doc.Session.SyncStatus)
}

func TestRecorder_NotifyFiresOnEveryLocalWrite(t *testing.T) {
	q := openTestQueue(t)
	var notifies atomic.Int64
	r := New(q, testLogger(), WithSyncTriggers(func() { notifies.Add(1) }, nil))

	session, err := r.StartSession(context.Background(), "fixture-3", nil, model.GameState{})
	require.NoError(t, err)
	_, err = r.RecordEvent(context.Background(), session.SessionKey, EventInput{Kind: model.EventAssist})
	require.NoError(t, err)
	quarter := 2
	_, err = r.UpdateState(context.Background(), session.SessionKey, model.StatePatch{Quarter: &quarter})
	require.NoError(t, err)

	assert.Equal(t, int64(3), notifies.Load())
}

func TestRecorder_ConcurrentSessionsRecordIndependently(t *testing.T) {
	q := openTestQueue(t)
	r := New(q, testLogger())

	a, err := r.StartSession(context.Background(), "fixture-a", nil, model.GameState{})
	require.NoError(t, err)
	b, err := r.StartSession(context.Background(), "fixture-b", nil, model.GameState{})
	require.NoError(t, err)

	const perSession = 20
	var wg sync.WaitGroup
	for _, key := range []string{a.SessionKey, b.SessionKey} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				_, err := r.RecordEvent(context.Background(), key, EventInput{Kind: model.EventTurnover, Quarter: 1})
				assert.NoError(t, err)
			}
		}(key)
	}
	wg.Wait()

	for _, key := range []string{a.SessionKey, b.SessionKey} {
		doc, err := q.Get(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, int64(perSession), doc.Session.LastSeq)
		assert.Len(t, doc.Events, perSession)
		seen := make(map[int64]bool, perSession)
		for _, ev := range doc.Events {
			assert.False(t, seen[ev.Seq], "duplicate seq %d", ev.Seq)
			seen[ev.Seq] = true
		}
	}
}
