// Package httpapi exposes the REST, SSE, and WebSocket surface of the
// report service.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/server"
)

// ReportsHandler serves run submission, status, results, and cancellation.
type ReportsHandler struct {
	svc    *server.Service
	store  *db.Client // optional; nil disables archive lookups
	logger *zap.Logger
}

func NewReportsHandler(svc *server.Service, store *db.Client, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, store: store, logger: logger}
}

func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/reports", h.handleReports)
	mux.HandleFunc("/api/v1/reports/", h.handleReport)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handleReports accepts POST /api/v1/reports.
func (h *ReportsHandler) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req server.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.SubmitReport(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, server.ErrSessionBusy):
			writeError(w, http.StatusConflict, "session already has a run in progress")
		case strings.Contains(err.Error(), "required"):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("report submission failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start report run")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleReport routes /api/v1/reports/{id}[/cancel|/result|/approval].
func (h *ReportsHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	parts := strings.SplitN(rest, "/", 2)
	runID := parts[0]
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.status(w, r, runID)
	case action == "result" && r.Method == http.MethodGet:
		h.result(w, r, runID)
	case action == "cancel" && r.Method == http.MethodPost:
		h.cancel(w, r, runID)
	case action == "approval" && r.Method == http.MethodGet:
		h.pendingApproval(w, runID)
	default:
		writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (h *ReportsHandler) status(w http.ResponseWriter, r *http.Request, runID string) {
	st, err := h.svc.GetStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, server.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("status lookup failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// result returns the archived report when available, falling back to the
// workflow result for runs not yet persisted.
func (h *ReportsHandler) result(w http.ResponseWriter, r *http.Request, runID string) {
	if h.store != nil {
		rec, err := h.store.GetReport(r.Context(), runID)
		if err == nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Warn("archive lookup failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	result, err := h.svc.Result(r.Context(), runID)
	if err != nil {
		if errors.Is(err, server.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "result unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ReportsHandler) cancel(w http.ResponseWriter, r *http.Request, runID string) {
	if err := h.svc.Cancel(r.Context(), runID); err != nil {
		if errors.Is(err, server.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("cancel failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

func (h *ReportsHandler) pendingApproval(w http.ResponseWriter, runID string) {
	req, ok := h.svc.PendingApproval(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "no pending approval for run")
		return
	}
	writeJSON(w, http.StatusOK, req)
}
