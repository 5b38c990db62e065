package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedMarket stores an open Ash vs Misty market and returns it.
func seedMarket(t *testing.T, stores memory.Stores, sessionID string) domain.Market {
	t.Helper()
	m := domain.Market{
		ID:        "m-" + sessionID,
		Title:     "Pokemon Battle: Ash vs Misty",
		Status:    domain.MarketStatusOpen,
		SessionID: sessionID,
		PlayerOne: "Ash",
		PlayerTwo: "Misty",
	}
	require.NoError(t, stores.Markets.CreateWithOptions(context.Background(), m, []domain.MarketOption{
		{Name: "Ash"}, {Name: "Misty"},
	}))
	return m
}

func seedProposal(t *testing.T, stores memory.Stores, id, marketID, winner string, status domain.SettlementStatus) {
	t.Helper()
	seedProposalAt(t, stores, id, marketID, winner, status, time.Time{})
}

// seedProposalAt stores a proposal with a fixed creation time. A zero time
// lets the store stamp it.
func seedProposalAt(t *testing.T, stores memory.Stores, id, marketID, winner string, status domain.SettlementStatus, at time.Time) {
	t.Helper()
	require.NoError(t, stores.Settlements.Insert(context.Background(), domain.SettlementProposal{
		ID:         id,
		MarketID:   marketID,
		Winner:     winner,
		Confidence: 95,
		Status:     status,
		CreatedAt:  at,
	}))
}

func gameCategory(id string, active bool) domain.GameCategory {
	return domain.GameCategory{GameID: id, GameName: "Pokemon " + id, IsActive: active}
}
