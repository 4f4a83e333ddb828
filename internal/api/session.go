package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/screentech/pressassist/internal/domain"
	"github.com/screentech/pressassist/internal/identity"
	"github.com/screentech/pressassist/internal/session"
	"github.com/screentech/pressassist/internal/store"
)

type connectRequest struct {
	SerialNumber string `json:"serialNumber"`
}

type sessionStateResponse struct {
	Connected bool                 `json:"connected"`
	Profile   *domain.PressProfile `json:"profile,omitempty"`
	Messages  []domain.Message     `json:"messages,omitempty"`
}

// HandleConnect handles POST /api/session/connect.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.mgr.Connect(r.Context(), req.SerialNumber)
	if err != nil {
		if errors.Is(err, identity.ErrEmptySerial) {
			Error(w, http.StatusBadRequest, "serial number is required")
			return
		}
		if errors.Is(err, store.ErrCorruptRecord) {
			slog.Error("Stored session data is corrupt", "error", err)
			Error(w, http.StatusInternalServerError, "stored session data is corrupt")
			return
		}
		slog.Error("Connect failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to connect")
		return
	}

	JSON(w, http.StatusOK, sessionStateResponse{
		Connected: true,
		Profile:   &profile,
		Messages:  h.mgr.Messages(),
	})
}

// HandleDisconnect handles POST /api/session/disconnect. Disconnecting while
// already disconnected is a no-op.
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Disconnect(r.Context()); err != nil {
		slog.Error("Disconnect failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to disconnect")
		return
	}
	JSON(w, http.StatusOK, sessionStateResponse{Connected: false})
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

// HandleClearHistory handles POST /api/session/clear. The destructive reset
// requires an explicit confirm flag from the operator.
func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		Error(w, http.StatusBadRequest, "confirmation required")
		return
	}

	if err := h.mgr.ClearHistory(r.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			Error(w, http.StatusConflict, "no press connected")
		case errors.Is(err, session.ErrReplyInFlight):
			Error(w, http.StatusConflict, "a reply is still streaming")
		default:
			slog.Error("Clear history failed", "error", err)
			Error(w, http.StatusInternalServerError, "failed to clear history")
		}
		return
	}

	profile, _ := h.mgr.Profile()
	JSON(w, http.StatusOK, sessionStateResponse{
		Connected: true,
		Profile:   &profile,
		Messages:  h.mgr.Messages(),
	})
}

// HandleSessionState handles GET /api/session.
func (h *Handler) HandleSessionState(w http.ResponseWriter, r *http.Request) {
	profile, connected := h.mgr.Profile()
	if !connected {
		JSON(w, http.StatusOK, sessionStateResponse{Connected: false})
		return
	}
	JSON(w, http.StatusOK, sessionStateResponse{
		Connected: true,
		Profile:   &profile,
		Messages:  h.mgr.Messages(),
	})
}

// HandleKnowledge handles GET /api/knowledge for the active serial.
func (h *Handler) HandleKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.mgr.Knowledge(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			Error(w, http.StatusConflict, "no press connected")
			return
		}
		slog.Error("Knowledge lookup failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load knowledge base")
		return
	}
	if entries == nil {
		entries = []domain.KnowledgeEntry{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

type verifyResponse struct {
	Message *domain.Message        `json:"message"`
	Entry   *domain.KnowledgeEntry `json:"entry,omitempty"`
}

// HandleVerifyFix handles POST /api/messages/{messageID}/verify.
func (h *Handler) HandleVerifyFix(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	entry, err := h.mgr.VerifyFix(r.Context(), messageID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			Error(w, http.StatusConflict, "no press connected")
		case errors.Is(err, session.ErrMessageNotFound):
			Error(w, http.StatusNotFound, "message not found")
		default:
			slog.Error("Verify fix failed", "error", err, "message_id", messageID)
			Error(w, http.StatusInternalServerError, "failed to verify fix")
		}
		return
	}

	var verified *domain.Message
	for _, msg := range h.mgr.Messages() {
		if msg.ID == messageID {
			m := msg
			verified = &m
			break
		}
	}
	JSON(w, http.StatusOK, verifyResponse{Message: verified, Entry: entry})
}
