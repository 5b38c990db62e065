package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new SessionStore backed by the given connection pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionCols = `id, stream_id, channel_name, user_id, game_id, game_name,
	title, viewer_count, thumbnail_url, is_live, started_at, ended_at,
	created_at, updated_at`

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.StreamID, &s.ChannelName, &s.UserID, &s.GameID, &s.GameName,
		&s.Title, &s.ViewerCount, &s.ThumbnailURL, &s.IsLive, &s.StartedAt, &s.EndedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// GetByStreamID retrieves a session by the platform stream ID.
func (s *SessionStore) GetByStreamID(ctx context.Context, streamID string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM twitch_stream_sessions WHERE stream_id = $1`, streamID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("postgres: get session by stream %s: %w", streamID, err)
	}
	return sess, nil
}

// Create inserts a live session and returns it with its generated ID.
func (s *SessionStore) Create(ctx context.Context, sess domain.Session) (domain.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO twitch_stream_sessions (
			id, stream_id, channel_name, user_id, game_id, game_name,
			title, viewer_count, thumbnail_url, is_live, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		sess.ID, sess.StreamID, sess.ChannelName, sess.UserID, sess.GameID, sess.GameName,
		sess.Title, sess.ViewerCount, sess.ThumbnailURL, sess.StartedAt,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Session{}, fmt.Errorf("postgres: create session %s: %w", sess.StreamID, domain.ErrAlreadyExists)
		}
		return domain.Session{}, fmt.Errorf("postgres: create session %s: %w", sess.StreamID, err)
	}
	sess.IsLive = true
	return sess, nil
}

// UpdateLive refreshes the mutable fields and marks the session live again.
func (s *SessionStore) UpdateLive(ctx context.Context, id string, upd domain.SessionUpdate) error {
	const query = `
		UPDATE twitch_stream_sessions
		SET title = $2, viewer_count = $3, thumbnail_url = $4,
			is_live = TRUE, ended_at = NULL, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, upd.Title, upd.ViewerCount, upd.ThumbnailURL)
	if err != nil {
		return fmt.Errorf("postgres: update session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListLive returns every session currently flagged live.
func (s *SessionStore) ListLive(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM twitch_stream_sessions WHERE is_live = TRUE ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list live sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list live sessions rows: %w", err)
	}
	return out, nil
}

// MarkEnded flags the session offline.
func (s *SessionStore) MarkEnded(ctx context.Context, id string, endedAt time.Time) error {
	const query = `
		UPDATE twitch_stream_sessions
		SET is_live = FALSE, ended_at = $2, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, endedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark session %s ended: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
