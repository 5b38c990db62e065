package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/service"
)

// GameService manages the polled categories.
type GameService interface {
	ListGames(ctx context.Context) ([]domain.GameCategory, error)
	Discover(ctx context.Context) (service.DiscoveryReport, error)
	SetActive(ctx context.Context, gameID string, active bool) error
}

// GameHandler serves the category list and discovery.
type GameHandler struct {
	games  GameService
	logger *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// ListGames returns every known category.
// GET /api/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGames(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list games failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []domain.GameCategory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// Discover searches the platform for categories and stores them.
// POST /api/games/discover
func (h *GameHandler) Discover(w http.ResponseWriter, r *http.Request) {
	report, err := h.games.Discover(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: discovery failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetActive toggles polling of a category.
// PUT /api/games/{id}
func (h *GameHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}
	if err := h.games.SetActive(r.Context(), id, *req.IsActive); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: set game active failed", slog.String("error", err.Error()))
		}
		writeError(w, code, "failed to update game")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": id, "is_active": *req.IsActive})
}
