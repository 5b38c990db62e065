package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/metrics"
)

// SettleReport summarises one auto-settlement run.
type SettleReport struct {
	Pending int `json:"pending"`
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SettlementService applies settlement proposals to markets, automatically
// for auto_settle proposals and by admin decision for review ones.
type SettlementService struct {
	settlements domain.SettlementStore
	markets     domain.MarketStore
	audit       domain.AuditStore
	cache       domain.MarketCache
	bus         domain.SignalBus
	metrics     *metrics.OracleMetrics
	now         func() time.Time
	logger      *slog.Logger
}

// NewSettlementService creates a SettlementService. audit may be nil.
func NewSettlementService(
	settlements domain.SettlementStore,
	markets domain.MarketStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		settlements: settlements,
		markets:     markets,
		audit:       audit,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With(slog.String("component", "settlement")),
	}
}

// WithCache invalidates cached markets once they resolve.
func (s *SettlementService) WithCache(c domain.MarketCache) *SettlementService {
	s.cache = c
	return s
}

// WithSignalBus publishes settlement events.
func (s *SettlementService) WithSignalBus(b domain.SignalBus) *SettlementService {
	s.bus = b
	return s
}

// WithMetrics records settlement counters.
func (s *SettlementService) WithMetrics(m *metrics.OracleMetrics) *SettlementService {
	s.metrics = m
	return s
}

// SettlePending applies every unsettled auto_settle proposal. Each proposal
// settles in its own transaction; a failure is logged and the rest continue.
// Proposals are applied newest first, so when a market has several the one
// from the latest title resolves it and the older ones are rejected.
func (s *SettlementService) SettlePending(ctx context.Context) (SettleReport, error) {
	items, err := s.settlements.ListPending(ctx, []domain.SettlementStatus{domain.SettlementAutoSettle}, domain.ListOpts{})
	if err != nil {
		return SettleReport{}, fmt.Errorf("settlement: list pending: %w", err)
	}
	report := SettleReport{Pending: len(items)}

	for _, item := range items {
		log := s.logger.With(slog.String("proposal_id", item.ID), slog.String("market_id", item.MarketID))
		if item.Winner == "" {
			report.Skipped++
			log.WarnContext(ctx, "auto_settle proposal without winner")
			continue
		}

		err := s.settle(ctx, item.SettlementProposal, item.Winner, "auto")
		switch {
		case errors.Is(err, domain.ErrAlreadySettled):
			report.Skipped++
			log.InfoContext(ctx, "proposal superseded, market already resolved")
		case err != nil:
			report.Failed++
			log.ErrorContext(ctx, "auto settlement failed", slog.String("error", err.Error()))
		default:
			report.Settled++
			log.InfoContext(ctx, "market settled", slog.String("winner", item.Winner))
		}
	}

	if report.Pending > 0 {
		s.logger.InfoContext(ctx, "settlement run complete",
			slog.Int("pending", report.Pending),
			slog.Int("settled", report.Settled),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// ListForReview returns unsettled proposals awaiting an admin, newest first.
func (s *SettlementService) ListForReview(ctx context.Context, opts domain.ListOpts) ([]domain.ReviewItem, error) {
	items, err := s.settlements.ListPending(ctx,
		[]domain.SettlementStatus{domain.SettlementNeedsReview, domain.SettlementNeedsManualReview}, opts)
	if err != nil {
		return nil, fmt.Errorf("settlement: list for review: %w", err)
	}
	return items, nil
}

// Approve settles a proposal with the winner an admin picked. When the
// market has recorded players the winner must name one of them; it is
// stored with the market's spelling.
func (s *SettlementService) Approve(ctx context.Context, proposalID, winner string) (domain.SettlementProposal, error) {
	p, err := s.settlements.GetByID(ctx, proposalID)
	if err != nil {
		return domain.SettlementProposal{}, fmt.Errorf("settlement: get proposal %s: %w", proposalID, err)
	}
	if p.Status.IsTerminal() || p.SettledAt != nil {
		return domain.SettlementProposal{}, domain.ErrAlreadySettled
	}

	// The market may already be resolved; Settle rejects the proposal then.
	market, err := s.markets.GetByID(ctx, p.MarketID)
	if err != nil {
		return domain.SettlementProposal{}, fmt.Errorf("settlement: get market %s: %w", p.MarketID, err)
	}
	winner, err = validWinner(market, winner)
	if err != nil {
		return domain.SettlementProposal{}, err
	}

	if err := s.settle(ctx, p, winner, "approve"); err != nil {
		return domain.SettlementProposal{}, err
	}
	s.logger.InfoContext(ctx, "proposal approved",
		slog.String("proposal_id", proposalID),
		slog.String("winner", winner),
	)
	return s.settlements.GetByID(ctx, proposalID)
}

// Reject closes a proposal without resolving its market.
func (s *SettlementService) Reject(ctx context.Context, proposalID string) error {
	err := s.settlements.MarkRejected(ctx, proposalID, s.now())
	s.metrics.RecordSettlement("reject", err)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadySettled) {
			return err
		}
		return fmt.Errorf("settlement: reject %s: %w", proposalID, err)
	}

	s.auditLog(ctx, "settlement.reject", map[string]any{"proposal_id": proposalID})
	s.publish(ctx, domain.EventProposalReject, map[string]any{"proposal_id": proposalID})
	s.logger.InfoContext(ctx, "proposal rejected", slog.String("proposal_id", proposalID))
	return nil
}

func (s *SettlementService) settle(ctx context.Context, p domain.SettlementProposal, winner, kind string) error {
	err := s.settlements.Settle(ctx, p.ID, winner, s.now())
	s.metrics.RecordSettlement(kind, err)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("settlement: settle %s: %w", p.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, p.MarketID); err != nil {
			s.logger.WarnContext(ctx, "market cache invalidate failed",
				slog.String("market_id", p.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	detail := map[string]any{
		"proposal_id": p.ID,
		"market_id":   p.MarketID,
		"winner":      winner,
		"confidence":  p.Confidence,
	}
	s.auditLog(ctx, "settlement."+kind, detail)
	s.publish(ctx, domain.EventMarketSettled, detail)
	return nil
}

func validWinner(market domain.Market, winner string) (string, error) {
	winner = strings.TrimSpace(winner)
	if winner == "" {
		return "", domain.ErrInvalidWinner
	}
	if !market.HasPlayers() {
		return winner, nil
	}
	switch {
	case strings.EqualFold(winner, market.PlayerOne):
		return market.PlayerOne, nil
	case strings.EqualFold(winner, market.PlayerTwo):
		return market.PlayerTwo, nil
	}
	return "", domain.ErrInvalidWinner
}

func (s *SettlementService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *SettlementService) publish(ctx context.Context, eventType string, data any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Event{Type: eventType, Data: data, At: s.now()})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelSettlement, payload); err != nil {
		s.logger.WarnContext(ctx, "publish settlement event failed", slog.String("error", err.Error()))
	}
}
