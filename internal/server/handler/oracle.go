package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/battleoracle/internal/pipeline"
	"github.com/alanyoungcy/battleoracle/internal/service"
)

// CycleRunner runs one monitoring pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) (pipeline.CycleReport, error)
}

// PendingSettler applies pending auto-settle proposals.
type PendingSettler interface {
	SettlePending(ctx context.Context) (service.SettleReport, error)
}

// OracleHandler serves the single action endpoint schedulers call.
type OracleHandler struct {
	monitor CycleRunner
	settler PendingSettler
	logger  *slog.Logger
}

// NewOracleHandler creates an OracleHandler.
func NewOracleHandler(monitor CycleRunner, settler PendingSettler, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{monitor: monitor, settler: settler, logger: logger}
}

// Handle dispatches on the action query parameter.
// GET|POST /api/oracle?action=monitor|settle
func (h *OracleHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "monitor":
		h.runMonitor(w, r)
	case "settle":
		h.runSettle(w, r)
	default:
		writeError(w, http.StatusBadRequest, "Invalid action parameter")
	}
}

func (h *OracleHandler) runMonitor(w http.ResponseWriter, r *http.Request) {
	report, err := h.monitor.RunCycle(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: monitor cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.NoGames {
		writeJSON(w, http.StatusOK, map[string]any{"message": "No game IDs found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Stream monitoring complete",
		"streamsFound": report.StreamsFound,
	})
}

func (h *OracleHandler) runSettle(w http.ResponseWriter, r *http.Request) {
	report, err := h.settler.SettlePending(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: settlement failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.Pending == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"message": "No pending settlements"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Settlement complete",
		"settled": report.Settled,
	})
}
