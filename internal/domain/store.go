package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SessionStore persists observed stream sessions.
type SessionStore interface {
	GetByStreamID(ctx context.Context, streamID string) (Session, error)
	Create(ctx context.Context, s Session) (Session, error)
	// UpdateLive refreshes title, viewers and thumbnail and forces is_live.
	UpdateLive(ctx context.Context, id string, upd SessionUpdate) error
	ListLive(ctx context.Context) ([]Session, error)
	MarkEnded(ctx context.Context, id string, endedAt time.Time) error
}

// MarketStore persists betting markets and their options.
type MarketStore interface {
	// CreateWithOptions inserts the market and its options atomically. It
	// returns ErrAlreadyExists if the session already has a market.
	CreateWithOptions(ctx context.Context, m Market, opts []MarketOption) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetBySession(ctx context.Context, sessionID string) (Market, error)
	GetOpenBySession(ctx context.Context, sessionID string) (Market, error)
	UpdateViewerCount(ctx context.Context, id string, viewers int) error
	// Resolve moves an open market to resolved. It returns ErrAlreadySettled
	// when the market is no longer open.
	Resolve(ctx context.Context, id, outcome string) error
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	ListOptions(ctx context.Context, marketID string) ([]MarketOption, error)
	Count(ctx context.Context) (int64, error)
}

// DetectionStore persists detection log rows.
type DetectionStore interface {
	Insert(ctx context.Context, d DetectionLog) error
	List(ctx context.Context, opts ListOpts) ([]DetectionLog, error)
	ListBySession(ctx context.Context, sessionID string, opts ListOpts) ([]DetectionLog, error)
	ListBefore(ctx context.Context, before time.Time) ([]DetectionLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SettlementStore persists settlement proposals.
type SettlementStore interface {
	Insert(ctx context.Context, p SettlementProposal) error
	GetByID(ctx context.Context, id string) (SettlementProposal, error)
	// ListPending returns unsettled proposals in the given statuses, newest
	// first, joined with their market.
	ListPending(ctx context.Context, statuses []SettlementStatus, opts ListOpts) ([]ReviewItem, error)
	// Settle resolves the market with winner and marks the proposal settled
	// in a single transaction. It returns ErrAlreadySettled when the proposal
	// is already terminal or its market was resolved by another proposal; in
	// the latter case the proposal is marked rejected.
	Settle(ctx context.Context, proposalID, winner string, at time.Time) error
	MarkRejected(ctx context.Context, proposalID string, at time.Time) error
	ListBefore(ctx context.Context, before time.Time) ([]SettlementProposal, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// GameStore persists the categories the monitor polls.
type GameStore interface {
	Upsert(ctx context.Context, g GameCategory) error
	ListActiveIDs(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]GameCategory, error)
	Count(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, gameID string, active bool) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
