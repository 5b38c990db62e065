package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/store/memory"
)

type brokenSettle struct {
	*memory.SettlementStore
	failID string
}

func (b brokenSettle) Settle(ctx context.Context, id, winner string, at time.Time) error {
	if id == b.failID {
		return errors.New("tx aborted")
	}
	return b.SettlementStore.Settle(ctx, id, winner, at)
}

func TestSettlePending(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m1 := seedMarket(t, stores, "s1")
	m2 := seedMarket(t, stores, "s2")
	m3 := seedMarket(t, stores, "s3")
	seedProposal(t, stores, "p1", m1.ID, "Ash", domain.SettlementAutoSettle)
	seedProposal(t, stores, "p2", m2.ID, "Misty", domain.SettlementAutoSettle)
	seedProposal(t, stores, "p3", m3.ID, "Misty", domain.SettlementNeedsReview)

	svc := NewSettlementService(brokenSettle{stores.Settlements, "p2"}, stores.Markets, stores.Audit, quietLogger())
	report, err := svc.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SettleReport{Pending: 2, Settled: 1, Failed: 1}, report)

	market, err := stores.Markets.GetByID(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, market.Status)
	assert.Equal(t, "Ash", market.Outcome)

	p, err := stores.Settlements.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementSettled, p.Status)
	assert.NotNil(t, p.SettledAt)

	untouched, err := stores.Markets.GetByID(ctx, m3.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, untouched.Status, "review proposals are not auto-settled")

	entries, err := stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settlement.auto", entries[0].Event)
}

func TestSettlePendingLatestProposalWins(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m := seedMarket(t, stores, "s1")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedProposalAt(t, stores, "p-old", m.ID, "Ash", domain.SettlementAutoSettle, base)
	seedProposalAt(t, stores, "p-new", m.ID, "Misty", domain.SettlementAutoSettle, base.Add(time.Minute))

	svc := NewSettlementService(stores.Settlements, stores.Markets, stores.Audit, quietLogger())
	report, err := svc.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SettleReport{Pending: 2, Settled: 1, Skipped: 1}, report)

	market, err := stores.Markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, market.Status)
	assert.Equal(t, "Misty", market.Outcome)

	old, err := stores.Settlements.GetByID(ctx, "p-old")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementRejected, old.Status)
	assert.NotNil(t, old.SettledAt)

	again, err := svc.SettlePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Pending)

	entries, err := stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApproveAfterAutoSettleKeepsOutcome(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m := seedMarket(t, stores, "s1")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedProposalAt(t, stores, "p-review", m.ID, "Misty", domain.SettlementNeedsReview, base)
	seedProposalAt(t, stores, "p-auto", m.ID, "Ash", domain.SettlementAutoSettle, base.Add(time.Minute))

	svc := NewSettlementService(stores.Settlements, stores.Markets, stores.Audit, quietLogger())
	report, err := svc.SettlePending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Settled)

	_, err = svc.Approve(ctx, "p-review", "Misty")
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	market, err := stores.Markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ash", market.Outcome)

	review, err := stores.Settlements.GetByID(ctx, "p-review")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementRejected, review.Status)

	queue, err := svc.ListForReview(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, queue)

	assert.ErrorIs(t, stores.Markets.Resolve(ctx, m.ID, "Misty"), domain.ErrAlreadySettled)
	assert.ErrorIs(t, stores.Markets.Resolve(ctx, "missing", "Misty"), domain.ErrNotFound)
}

func TestSettlePendingNothingToDo(t *testing.T) {
	stores := memory.New()
	svc := NewSettlementService(stores.Settlements, stores.Markets, nil, quietLogger())
	report, err := svc.SettlePending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Pending)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m := seedMarket(t, stores, "s1")
	seedProposal(t, stores, "p1", m.ID, "", domain.SettlementNeedsManualReview)
	svc := NewSettlementService(stores.Settlements, stores.Markets, stores.Audit, quietLogger())

	_, err := svc.Approve(ctx, "p1", "Brock")
	assert.ErrorIs(t, err, domain.ErrInvalidWinner)
	_, err = svc.Approve(ctx, "p1", "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidWinner)

	p, err := svc.Approve(ctx, "p1", "misty")
	require.NoError(t, err)
	assert.Equal(t, "Misty", p.Winner, "winner takes the market's spelling")
	assert.Equal(t, domain.SettlementSettled, p.Status)

	market, err := stores.Markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Misty", market.Outcome)

	_, err = svc.Approve(ctx, "p1", "Ash")
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.ErrorIs(t, svc.Reject(ctx, "p1"), domain.ErrAlreadySettled)

	_, err = svc.Approve(ctx, "missing", "Ash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectAndReviewQueue(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m1 := seedMarket(t, stores, "s1")
	m2 := seedMarket(t, stores, "s2")
	seedProposal(t, stores, "p1", m1.ID, "Ash", domain.SettlementNeedsReview)
	seedProposal(t, stores, "p2", m2.ID, "", domain.SettlementNeedsManualReview)
	seedProposal(t, stores, "p3", m2.ID, "Ash", domain.SettlementAutoSettle)
	svc := NewSettlementService(stores.Settlements, stores.Markets, stores.Audit, quietLogger())

	queue, err := svc.ListForReview(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, queue, 2)
	for _, item := range queue {
		assert.True(t, item.Status.IsReview())
		assert.Equal(t, "Pokemon Battle: Ash vs Misty", item.MarketTitle)
	}

	require.NoError(t, svc.Reject(ctx, "p1"))
	p, err := stores.Settlements.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementRejected, p.Status)

	market, err := stores.Markets.GetByID(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, market.Status, "rejection leaves the market open")

	queue, err = svc.ListForReview(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}
