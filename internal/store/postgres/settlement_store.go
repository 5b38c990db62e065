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

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given connection pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

const proposalCols = `p.id, p.market_id, COALESCE(p.stream_session_id::text, ''), p.stream_title,
	COALESCE(p.parsed_winner, ''), p.confidence_score, p.settlement_status, p.settled_at, p.created_at`

func scanProposal(row pgx.Row, extra ...any) (domain.SettlementProposal, error) {
	var p domain.SettlementProposal
	var status string
	dest := append([]any{
		&p.ID, &p.MarketID, &p.SessionID, &p.StreamTitle,
		&p.Winner, &p.Confidence, &status, &p.SettledAt, &p.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.SettlementProposal{}, err
	}
	p.Status = domain.SettlementStatus(status)
	return p, nil
}

// Insert records a new proposal. Only proposal tags are accepted.
func (s *SettlementStore) Insert(ctx context.Context, p domain.SettlementProposal) error {
	if !p.Status.IsProposalTag() {
		return fmt.Errorf("postgres: insert proposal with status %q: %w", p.Status, domain.ErrInvalidStatus)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO market_auto_settlement (
			id, market_id, stream_session_id, stream_title,
			parsed_winner, confidence_score, settlement_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.MarketID, nullString(p.SessionID), p.StreamTitle,
		nullString(p.Winner), p.Confidence, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert proposal for market %s: %w", p.MarketID, err)
	}
	return nil
}

// GetByID retrieves a proposal by its primary key.
func (s *SettlementStore) GetByID(ctx context.Context, id string) (domain.SettlementProposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalCols+` FROM market_auto_settlement p WHERE p.id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SettlementProposal{}, domain.ErrNotFound
		}
		return domain.SettlementProposal{}, fmt.Errorf("postgres: get proposal %s: %w", id, err)
	}
	return p, nil
}

// ListPending returns unsettled proposals in the given statuses joined with
// their market, newest first.
func (s *SettlementStore) ListPending(ctx context.Context, statuses []domain.SettlementStatus, opts domain.ListOpts) ([]domain.ReviewItem, error) {
	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}
	query := `SELECT ` + proposalCols + `,
			m.title, COALESCE(m.player_one, ''), COALESCE(m.player_two, ''), m.twitch_channel_name
		FROM market_auto_settlement p
		JOIN betting_markets m ON m.id = p.market_id
		WHERE p.settled_at IS NULL AND p.settlement_status = ANY($1)`
	query, args := appendPaging(query, []any{raw}, opts, "p.created_at", "p.created_at DESC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending proposals: %w", err)
	}
	defer rows.Close()

	var items []domain.ReviewItem
	for rows.Next() {
		var item domain.ReviewItem
		p, err := scanProposal(rows, &item.MarketTitle, &item.PlayerOne, &item.PlayerTwo, &item.ChannelName)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pending proposal: %w", err)
		}
		item.SettlementProposal = p
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending proposals rows: %w", err)
	}
	return items, nil
}

// Settle resolves the proposal's market with winner and marks the proposal
// settled, atomically. The proposal row is locked for the duration.
func (s *SettlementStore) Settle(ctx context.Context, proposalID, winner string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settle %s: %w", proposalID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var marketID, status string
	var settledAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT market_id, settlement_status, settled_at FROM market_auto_settlement WHERE id = $1 FOR UPDATE`,
		proposalID,
	).Scan(&marketID, &status, &settledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: lock proposal %s: %w", proposalID, err)
	}
	if settledAt != nil || domain.SettlementStatus(status).IsTerminal() {
		return domain.ErrAlreadySettled
	}

	var marketStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM betting_markets WHERE id = $1 FOR UPDATE`, marketID,
	).Scan(&marketStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("postgres: resolve market %s: %w", marketID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	if domain.MarketStatus(marketStatus) != domain.MarketStatusOpen {
		// Another proposal already resolved the market.
		if _, err := tx.Exec(ctx, `
			UPDATE market_auto_settlement
			SET settlement_status = 'rejected', settled_at = $2
			WHERE id = $1`, proposalID, at); err != nil {
			return fmt.Errorf("postgres: reject superseded proposal %s: %w", proposalID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit reject %s: %w", proposalID, err)
		}
		return domain.ErrAlreadySettled
	}

	if _, err := tx.Exec(ctx, resolveMarketSQL, marketID, winner); err != nil {
		return fmt.Errorf("postgres: resolve market %s: %w", marketID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE market_auto_settlement
		SET settlement_status = 'settled', parsed_winner = $2, settled_at = $3
		WHERE id = $1`, proposalID, winner, at)
	if err != nil {
		return fmt.Errorf("postgres: mark proposal %s settled: %w", proposalID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settle %s: %w", proposalID, err)
	}
	return nil
}

// MarkRejected closes a proposal without touching its market.
func (s *SettlementStore) MarkRejected(ctx context.Context, proposalID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE market_auto_settlement
		SET settlement_status = 'rejected', settled_at = $2
		WHERE id = $1 AND settled_at IS NULL
			AND settlement_status NOT IN ('settled', 'rejected')`, proposalID, at)
	if err != nil {
		return fmt.Errorf("postgres: reject proposal %s: %w", proposalID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, proposalID); err != nil {
			return err
		}
		return domain.ErrAlreadySettled
	}
	return nil
}

// ListBefore returns terminal proposals created before the cutoff, oldest first.
func (s *SettlementStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SettlementProposal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+proposalCols+` FROM market_auto_settlement p
		WHERE p.created_at < $1 AND p.settlement_status IN ('settled', 'rejected')
		ORDER BY p.created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list proposals before: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SettlementProposal, error) {
		return scanProposal(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list proposals before: %w", err)
	}
	return out, nil
}

// DeleteBefore removes terminal proposals created before the cutoff.
func (s *SettlementStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM market_auto_settlement
		WHERE created_at < $1 AND settlement_status IN ('settled', 'rejected')`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete proposals: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.SettlementStore = (*SettlementStore)(nil)
