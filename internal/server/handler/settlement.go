package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// SettlementService is the admin surface of the settlement service.
type SettlementService interface {
	ListForReview(ctx context.Context, opts domain.ListOpts) ([]domain.ReviewItem, error)
	Approve(ctx context.Context, proposalID, winner string) (domain.SettlementProposal, error)
	Reject(ctx context.Context, proposalID string) error
}

// SettlementHandler serves the admin review queue.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, logger: logger}
}

// ListReview returns proposals awaiting an admin decision.
// GET /api/settlements/review
func (h *SettlementHandler) ListReview(w http.ResponseWriter, r *http.Request) {
	items, err := h.settlements.ListForReview(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list review queue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list review queue")
		return
	}
	if items == nil {
		items = []domain.ReviewItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": items})
}

type settleRequest struct {
	Winner string `json:"winner"`
}

// Settle resolves a proposal's market with the chosen winner.
// POST /api/settlements/{id}/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.settlements.Approve(r.Context(), id, req.Winner)
	if err != nil {
		h.fail(w, r, "settle", id, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Reject discards a proposal.
// POST /api/settlements/{id}/reject
func (h *SettlementHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.settlements.Reject(r.Context(), id); err != nil {
		h.fail(w, r, "reject", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "settlement_status": domain.SettlementRejected})
}

func (h *SettlementHandler) fail(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" proposal failed",
			slog.String("proposal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, code, "failed to "+op+" proposal")
		return
	}
	writeError(w, code, err.Error())
}
