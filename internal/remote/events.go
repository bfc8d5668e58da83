package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hoopdeck/courtside/internal/model"
)

// InsertEvents bulk-loads events with duplicate safety: COPY into a temp
// table, then insert skipping rows whose (session_key, seq) already exists.
// Retried sync passes over an already-flushed batch therefore insert zero
// rows instead of failing. Returns the number of newly inserted events.
func (s *Store) InsertEvents(ctx context.Context, events []model.GameEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("remote: begin event insert tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE _sync_events (LIKE events INCLUDING DEFAULTS) ON COMMIT DROP`,
	); err != nil {
		return 0, fmt.Errorf("remote: create sync temp table: %w", err)
	}

	columns := []string{"id", "session_key", "seq", "kind", "value", "quarter", "game_clock", "opponent", "player_id", "opponent_jersey", "metadata", "created_at"}
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{
			e.ID,
			e.SessionKey,
			e.Seq,
			string(e.Kind),
			e.Value,
			e.Quarter,
			e.Clock,
			e.Opponent,
			e.PlayerID,
			e.OpponentJersey,
			e.Metadata,
			e.CreatedAt,
		}
	}

	// Dedicated COPY timeout so a hung Postgres cannot stall the sync
	// pass indefinitely.
	copyCtx, copyCancel := context.WithTimeout(ctx, 30*time.Second)
	_, err = tx.CopyFrom(copyCtx, pgx.Identifier{"_sync_events"}, columns, pgx.CopyFromRows(rows))
	copyCancel()
	if err != nil {
		return 0, fmt.Errorf("remote: copy into sync temp table: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO events SELECT * FROM _sync_events ON CONFLICT (session_key, seq) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("remote: insert from sync temp table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("remote: commit event insert: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetEvents retrieves a session's event log ordered by sequence number.
func (s *Store) GetEvents(ctx context.Context, sessionKey string) ([]model.GameEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_key, seq, kind, value, quarter, game_clock, opponent, player_id, opponent_jersey, metadata, created_at
		 FROM events WHERE session_key = $1
		 ORDER BY seq ASC`, sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("remote: get events: %w", err)
	}
	defer rows.Close()

	var events []model.GameEvent
	for rows.Next() {
		var e model.GameEvent
		if err := rows.Scan(
			&e.ID, &e.SessionKey, &e.Seq, &e.Kind, &e.Value, &e.Quarter,
			&e.Clock, &e.Opponent, &e.PlayerID, &e.OpponentJersey,
			&e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("remote: scan event: %w", err)
		}
		e.SyncStatus = model.SyncSynced
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of synced events for a session.
func (s *Store) CountEvents(ctx context.Context, sessionKey string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE session_key = $1`, sessionKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("remote: count events: %w", err)
	}
	return count, nil
}
