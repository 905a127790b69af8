package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/server"
	"github.com/draftsmith-ai/draftsmith/internal/session"
)

// SessionsHandler serves session state and run history.
type SessionsHandler struct {
	svc    *server.Service
	store  *db.Client // optional
	logger *zap.Logger
}

func NewSessionsHandler(svc *server.Service, store *db.Client, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, store: store, logger: logger}
}

func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/sessions/", h.handleSession)
}

// handleSession routes /api/v1/sessions/{id}[/reports].
func (h *SessionsHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	sessionID := parts[0]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, r, sessionID)
	case action == "" && r.Method == http.MethodDelete:
		h.delete(w, r, sessionID)
	case action == "reports" && r.Method == http.MethodGet:
		h.reports(w, r, sessionID)
	default:
		writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.svc.Sessions().Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	active, err := h.svc.Sessions().ActiveRun(r.Context(), sessionID)
	if err != nil {
		h.logger.Warn("active run lookup failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":    sess,
		"active_run": active,
	})
}

func (h *SessionsHandler) delete(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.svc.Sessions().Delete(r.Context(), sessionID); err != nil {
		h.logger.Error("session delete failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "deleted"})
}

// reports lists archived reports for the session, newest first.
func (h *SessionsHandler) reports(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "report archive not configured")
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			limit = n
		}
	}
	records, err := h.store.ListSessionReports(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("session report listing failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"reports":    records,
	})
}
