package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// GameStore implements domain.GameStore using PostgreSQL.
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore creates a new GameStore backed by the given connection pool.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

// Upsert inserts or refreshes a category.
func (s *GameStore) Upsert(ctx context.Context, g domain.GameCategory) error {
	const query = `
		INSERT INTO pokemon_game_ids (game_id, game_name, game_category, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id) DO UPDATE SET
			game_name     = EXCLUDED.game_name,
			game_category = EXCLUDED.game_category,
			is_active     = EXCLUDED.is_active,
			updated_at    = NOW()`
	if _, err := s.pool.Exec(ctx, query, g.GameID, g.GameName, g.Category, g.IsActive); err != nil {
		return fmt.Errorf("postgres: upsert game %s: %w", g.GameID, err)
	}
	return nil
}

// ListActiveIDs returns the IDs of every active category.
func (s *GameStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT game_id FROM pokemon_game_ids WHERE is_active = TRUE ORDER BY game_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active games: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list active games: %w", err)
	}
	return ids, nil
}

// List returns every category.
func (s *GameStore) List(ctx context.Context) ([]domain.GameCategory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, game_name, game_category, is_active, created_at, updated_at
		FROM pokemon_game_ids ORDER BY game_name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list games: %w", err)
	}
	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.GameCategory, error) {
		var g domain.GameCategory
		err := row.Scan(&g.GameID, &g.GameName, &g.Category, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list games: %w", err)
	}
	return games, nil
}

// Count returns the number of known categories.
func (s *GameStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pokemon_game_ids`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count games: %w", err)
	}
	return n, nil
}

// SetActive toggles whether a category is polled.
func (s *GameStore) SetActive(ctx context.Context, gameID string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pokemon_game_ids SET is_active = $2, updated_at = NOW() WHERE game_id = $1`, gameID, active)
	if err != nil {
		return fmt.Errorf("postgres: set game %s active: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.GameStore = (*GameStore)(nil)
