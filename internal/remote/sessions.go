package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hoopdeck/courtside/internal/model"
)

// ErrSessionNotFound is returned when no synced session exists for a key.
var ErrSessionNotFound = errors.New("remote: session not found")

// UpsertSession creates or refreshes the session row keyed by its natural
// session key. Replaying the same session from the queue converges on the
// same row, so a resumed or re-synced session never duplicates.
func (s *Store) UpsertSession(ctx context.Context, session model.GameSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_key, fixture_id, external_game_id, state, active, last_seq, started_at, ended_at, last_modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_key) DO UPDATE SET
			external_game_id = EXCLUDED.external_game_id,
			state = EXCLUDED.state,
			active = EXCLUDED.active,
			last_seq = GREATEST(sessions.last_seq, EXCLUDED.last_seq),
			ended_at = EXCLUDED.ended_at,
			last_modified = EXCLUDED.last_modified`,
		session.SessionKey, session.FixtureID, session.ExternalGameID,
		session.State, session.Active, session.LastSeq,
		session.StartedAt, session.EndedAt, session.LastModified,
	)
	if err != nil {
		return fmt.Errorf("remote: upsert session: %w", err)
	}
	return nil
}

// GetSession retrieves one synced session by key.
func (s *Store) GetSession(ctx context.Context, sessionKey string) (model.GameSession, error) {
	var session model.GameSession
	err := s.pool.QueryRow(ctx,
		`SELECT session_key, fixture_id, external_game_id, state, active, last_seq, started_at, ended_at, last_modified
		 FROM sessions WHERE session_key = $1`, sessionKey,
	).Scan(
		&session.SessionKey, &session.FixtureID, &session.ExternalGameID,
		&session.State, &session.Active, &session.LastSeq,
		&session.StartedAt, &session.EndedAt, &session.LastModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GameSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
		}
		return model.GameSession{}, fmt.Errorf("remote: get session: %w", err)
	}
	session.SyncStatus = model.SyncSynced
	return session, nil
}

// GetSessionWithEvents retrieves a session and its full event log ordered
// by sequence number, ready for replay.
func (s *Store) GetSessionWithEvents(ctx context.Context, sessionKey string) (model.GameSession, []model.GameEvent, error) {
	session, err := s.GetSession(ctx, sessionKey)
	if err != nil {
		return model.GameSession{}, nil, err
	}
	events, err := s.GetEvents(ctx, sessionKey)
	if err != nil {
		return model.GameSession{}, nil, err
	}
	return session, events, nil
}

// ListRecentSessions returns finished sessions newest-first, up to limit,
// for rolling and season goal windows.
func (s *Store) ListRecentSessions(ctx context.Context, limit int) ([]model.GameSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT session_key, fixture_id, external_game_id, state, active, last_seq, started_at, ended_at, last_modified
		 FROM sessions WHERE active = FALSE
		 ORDER BY started_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("remote: list recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.GameSession
	for rows.Next() {
		var session model.GameSession
		if err := rows.Scan(
			&session.SessionKey, &session.FixtureID, &session.ExternalGameID,
			&session.State, &session.Active, &session.LastSeq,
			&session.StartedAt, &session.EndedAt, &session.LastModified,
		); err != nil {
			return nil, fmt.Errorf("remote: scan session: %w", err)
		}
		session.SyncStatus = model.SyncSynced
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
