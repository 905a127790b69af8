package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/activities"
	"github.com/draftsmith-ai/draftsmith/internal/server"
)

// ApprovalHandler accepts reviewer verdicts on pending structure approvals.
type ApprovalHandler struct {
	svc    *server.Service
	logger *zap.Logger
}

func NewApprovalHandler(svc *server.Service, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, logger: logger}
}

func (h *ApprovalHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/approvals/decision", h.handleDecision)
}

type decisionRequest struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
	Feedback   string `json:"feedback,omitempty"`
	DecidedBy  string `json:"decided_by,omitempty"`
}

// handleDecision delivers an approve/reject verdict to the waiting run.
// POST /api/v1/approvals/decision
func (h *ApprovalHandler) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ApprovalID == "" {
		writeError(w, http.StatusBadRequest, "approval_id required")
		return
	}

	err := h.svc.Decide(r.Context(), activities.ApprovalDecision{
		ApprovalID: req.ApprovalID,
		Approved:   req.Approved,
		Feedback:   req.Feedback,
		DecidedBy:  req.DecidedBy,
	})
	if err != nil {
		if errors.Is(err, server.ErrApprovalNotFound) {
			writeError(w, http.StatusNotFound, "no open approval with that id")
			return
		}
		h.logger.Error("approval decision failed",
			zap.String("approval_id", req.ApprovalID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to deliver decision")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"approval_id": req.ApprovalID,
		"approved":    req.Approved,
	})
}
