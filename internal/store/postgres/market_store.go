package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, title, category, description, event_date, status, market_type,
	yes_odds, no_odds, total_volume, liquidity, image_url,
	COALESCE(twitch_stream_id::text, ''), twitch_channel_name, is_live_stream, stream_embed_url,
	COALESCE(player_one, ''), COALESCE(player_two, ''), viewer_count, COALESCE(outcome, ''),
	created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, marketType string
	err := row.Scan(
		&m.ID, &m.Title, &m.Category, &m.Description, &m.EventDate, &status, &marketType,
		&m.YesOdds, &m.NoOdds, &m.TotalVolume, &m.Liquidity, &m.ImageURL,
		&m.SessionID, &m.ChannelName, &m.IsLiveStream, &m.StreamEmbedURL,
		&m.PlayerOne, &m.PlayerTwo, &m.ViewerCount, &m.Outcome,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.MarketType = domain.MarketType(marketType)
	return m, nil
}

// CreateWithOptions inserts a market and its options in one transaction.
// A second market for the same session fails with domain.ErrAlreadyExists.
func (s *MarketStore) CreateWithOptions(ctx context.Context, m domain.Market, opts []domain.MarketOption) error {
	if m.ID == "" {
		return fmt.Errorf("postgres: create market: empty id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create market: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertMarket = `
		INSERT INTO betting_markets (
			id, title, category, description, event_date, status, market_type,
			yes_odds, no_odds, total_volume, liquidity, image_url,
			twitch_stream_id, twitch_channel_name, is_live_stream, stream_embed_url,
			player_one, player_two, viewer_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19
		)`
	_, err = tx.Exec(ctx, insertMarket,
		m.ID, m.Title, m.Category, m.Description, m.EventDate, string(m.Status), string(m.MarketType),
		m.YesOdds, m.NoOdds, m.TotalVolume, m.Liquidity, m.ImageURL,
		nullString(m.SessionID), m.ChannelName, m.IsLiveStream, m.StreamEmbedURL,
		nullString(m.PlayerOne), nullString(m.PlayerTwo), m.ViewerCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create market for session %s: %w", m.SessionID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}

	if len(opts) > 0 {
		batch := &pgx.Batch{}
		const insertOption = `
			INSERT INTO market_options (id, market_id, option_name, odds, total_pool)
			VALUES ($1, $2, $3, $4, $5)`
		for _, o := range opts {
			id := o.ID
			if id == "" {
				id = uuid.NewString()
			}
			batch.Queue(insertOption, id, m.ID, o.Name, o.Odds, o.TotalPool)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range opts {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert market option %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close option batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create market %s: %w", m.ID, err)
	}
	return nil
}

func (s *MarketStore) getOne(ctx context.Context, where string, arg any) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM betting_markets WHERE `+where, arg)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, err
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.getOne(ctx, `id = $1`, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, err
}

// GetBySession returns the market created for a session, in any status.
func (s *MarketStore) GetBySession(ctx context.Context, sessionID string) (domain.Market, error) {
	m, err := s.getOne(ctx, `twitch_stream_id = $1`, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("postgres: get market by session %s: %w", sessionID, err)
	}
	return m, err
}

// GetOpenBySession returns the session's market only while it is open.
func (s *MarketStore) GetOpenBySession(ctx context.Context, sessionID string) (domain.Market, error) {
	m, err := s.getOne(ctx, `twitch_stream_id = $1 AND status = 'open'`, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("postgres: get open market by session %s: %w", sessionID, err)
	}
	return m, err
}

// UpdateViewerCount stores the latest viewer count for a market.
func (s *MarketStore) UpdateViewerCount(ctx context.Context, id string, viewers int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE betting_markets SET viewer_count = $2, updated_at = NOW() WHERE id = $1`, id, viewers)
	if err != nil {
		return fmt.Errorf("postgres: update market %s viewers: %w", id, err)
	}
	return nil
}

// Resolve closes an open market with the given outcome. A market that is
// already resolved keeps its outcome and ErrAlreadySettled is returned.
func (s *MarketStore) Resolve(ctx context.Context, id, outcome string) error {
	tag, err := s.pool.Exec(ctx, resolveMarketSQL, id, outcome)
	if err != nil {
		return fmt.Errorf("postgres: resolve market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadySettled
	}
	return nil
}

const resolveMarketSQL = `
	UPDATE betting_markets
	SET status = 'resolved', outcome = $2, is_live_stream = FALSE, updated_at = NOW()
	WHERE id = $1 AND status = 'open'`

// ListByStatus returns markets in the given status, newest first. An empty
// status lists every market.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM betting_markets WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = $1`
		args = append(args, string(status))
	}
	query, args = appendPaging(query, args, opts, "created_at", "created_at DESC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// ListOptions returns the options of a market.
func (s *MarketStore) ListOptions(ctx context.Context, marketID string) ([]domain.MarketOption, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, option_name, odds, total_pool FROM market_options WHERE market_id = $1 ORDER BY option_name`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list options for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.MarketOption
	for rows.Next() {
		var o domain.MarketOption
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Name, &o.Odds, &o.TotalPool); err != nil {
			return nil, fmt.Errorf("postgres: scan option: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list options rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM betting_markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
