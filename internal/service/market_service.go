package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// MarketDetail is a market with its selectable options.
type MarketDetail struct {
	domain.Market
	Options []domain.MarketOption `json:"options"`
}

// MarketService serves market reads for the API, through the cache when one
// is configured.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(markets domain.MarketStore, cache domain.MarketCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the store on a miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		m, err := s.cache.Get(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market cache get failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "market cache set failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// GetMarketDetail returns the market together with its options.
func (s *MarketService) GetMarketDetail(ctx context.Context, id string) (MarketDetail, error) {
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return MarketDetail{}, err
	}
	opts, err := s.markets.ListOptions(ctx, id)
	if err != nil {
		return MarketDetail{}, fmt.Errorf("market_service: list options %q: %w", id, err)
	}
	if opts == nil {
		opts = []domain.MarketOption{}
	}
	return MarketDetail{Market: m, Options: opts}, nil
}

// List returns markets in the given status, or all markets when status is
// empty, newest first.
func (s *MarketService) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list %q: %w", status, err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	n, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return n, nil
}
