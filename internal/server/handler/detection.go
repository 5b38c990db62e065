package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/battleoracle/internal/detection"
	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// DetectionLister reads the detection log.
type DetectionLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.DetectionLog, error)
	ListBySession(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.DetectionLog, error)
}

// DetectionHandler serves the detection log and the detection preview.
type DetectionHandler struct {
	logs   DetectionLister
	logger *slog.Logger
}

// NewDetectionHandler creates a DetectionHandler.
func NewDetectionHandler(logs DetectionLister, logger *slog.Logger) *DetectionHandler {
	return &DetectionHandler{logs: logs, logger: logger}
}

// ListDetections returns detection log rows, newest first.
// GET /api/detections?session_id=
func (h *DetectionHandler) ListDetections(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	var (
		logs []domain.DetectionLog
		err  error
	)
	if sid := r.URL.Query().Get("session_id"); sid != "" {
		logs, err = h.logs.ListBySession(r.Context(), sid, opts)
	} else {
		logs, err = h.logs.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list detections failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}
	if logs == nil {
		logs = []domain.DetectionLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"detections": logs})
}

// PreviewRequest is the body of POST /api/detect.
type PreviewRequest struct {
	Title     string `json:"title"`
	PlayerOne string `json:"player_one,omitempty"`
	PlayerTwo string `json:"player_two,omitempty"`
}

// PreviewResponse shows what the monitor would do with a title.
type PreviewResponse struct {
	Detected       bool                    `json:"detected"`
	Detection      *detection.Result       `json:"detection"`
	CreateMarket   bool                    `json:"create_market"`
	Resolved       bool                    `json:"resolved"`
	Resolution     *detection.Result       `json:"resolution"`
	ProposalStatus domain.SettlementStatus `json:"proposal_status,omitempty"`
}

// Preview runs detection, policy and (when players are given) winner
// resolution on a title without touching any state.
// POST /api/detect
func (h *DetectionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, BuildPreview(req))
}

// BuildPreview evaluates a preview request.
func BuildPreview(req PreviewRequest) PreviewResponse {
	var resp PreviewResponse
	if r, ok := detection.Detect(req.Title); ok {
		resp.Detected = true
		resp.Detection = &r
		resp.CreateMarket = detection.ShouldCreateMarket(r)
	}
	if req.PlayerOne != "" && req.PlayerTwo != "" {
		if r, ok := detection.Resolve(req.Title, req.PlayerOne, req.PlayerTwo); ok {
			resp.Resolved = true
			resp.Resolution = &r
			if status, ok := detection.ProposalStatus(r); ok {
				resp.ProposalStatus = status
			}
		}
	}
	return resp
}
