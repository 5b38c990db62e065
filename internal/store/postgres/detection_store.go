package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// DetectionStore implements domain.DetectionStore using PostgreSQL.
type DetectionStore struct {
	pool *pgxpool.Pool
}

// NewDetectionStore creates a new DetectionStore backed by the given connection pool.
func NewDetectionStore(pool *pgxpool.Pool) *DetectionStore {
	return &DetectionStore{pool: pool}
}

const detectionCols = `id, stream_session_id, raw_title,
	COALESCE(detected_player_one, ''), COALESCE(detected_player_two, ''), COALESCE(detected_winner, ''),
	detection_pattern, confidence_score, created_at`

// Insert appends a detection log row.
func (s *DetectionStore) Insert(ctx context.Context, d domain.DetectionLog) error {
	const query = `
		INSERT INTO battle_detection_logs (
			stream_session_id, raw_title, detected_player_one, detected_player_two,
			detected_winner, detection_pattern, confidence_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		d.SessionID, d.RawTitle,
		nullString(d.PlayerOne), nullString(d.PlayerTwo), nullString(d.Winner),
		d.Pattern, d.Confidence,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert detection for session %s: %w", d.SessionID, err)
	}
	return nil
}

// List returns detections across all sessions, newest first.
func (s *DetectionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.DetectionLog, error) {
	query, args := appendPaging(
		`SELECT `+detectionCols+` FROM battle_detection_logs WHERE 1=1`, nil,
		opts, "created_at", "created_at DESC")
	return s.query(ctx, "list detections", query, args...)
}

// ListBySession returns the detections of one session, newest first.
func (s *DetectionStore) ListBySession(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.DetectionLog, error) {
	query, args := appendPaging(
		`SELECT `+detectionCols+` FROM battle_detection_logs WHERE stream_session_id = $1`,
		[]any{sessionID}, opts, "created_at", "created_at DESC")
	return s.query(ctx, "list detections for session "+sessionID, query, args...)
}

// ListBefore returns detections created before the cutoff, oldest first.
func (s *DetectionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.DetectionLog, error) {
	return s.query(ctx, "list detections before",
		`SELECT `+detectionCols+` FROM battle_detection_logs WHERE created_at < $1 ORDER BY created_at`, before)
}

// DeleteBefore removes detections created before the cutoff.
func (s *DetectionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM battle_detection_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete detections: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *DetectionStore) query(ctx context.Context, op, query string, args ...any) ([]domain.DetectionLog, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DetectionLog, error) {
		var d domain.DetectionLog
		err := row.Scan(&d.ID, &d.SessionID, &d.RawTitle,
			&d.PlayerOne, &d.PlayerTwo, &d.Winner,
			&d.Pattern, &d.Confidence, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return out, nil
}

var _ domain.DetectionStore = (*DetectionStore)(nil)
