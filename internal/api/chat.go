package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/screentech/pressassist/internal/session"
)

type chatRequest struct {
	Message string `json:"message"`
	// Image is an optional data URI with a photo of the fault.
	Image string `json:"image,omitempty"`
}

type chatDelta struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

// HandleChat handles POST /api/chat. The assistant reply is streamed back as
// SSE delta events; the final event carries the finalized message.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	profile, connected := h.mgr.Profile()
	if !connected {
		Error(w, http.StatusConflict, "no press connected")
		return
	}

	if !h.rateLimiter.Allow(profile.SerialNumber) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	stream, err := h.mgr.Send(r.Context(), req.Message, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			Error(w, http.StatusConflict, "no press connected")
		case errors.Is(err, session.ErrReplyInFlight):
			Error(w, http.StatusConflict, "a reply is already streaming")
		default:
			slog.Error("Chat send failed", "error", err)
			Error(w, http.StatusBadRequest, "failed to submit message")
		}
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Chat request",
		"serial", profile.SerialNumber,
		"request_id", reqID,
		"message_length", len(req.Message),
		"has_image", req.Image != "",
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		// The pending message must still be finalized even though the
		// client cannot stream; drain without forwarding.
		for range stream {
		}
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	messages := h.mgr.Messages()
	messageID := ""
	if len(messages) > 0 {
		messageID = messages[len(messages)-1].ID
	}

	for delta, err := range stream {
		if err != nil {
			slog.Error("Chat stream failed", "serial", profile.SerialNumber, "error", err)
			if writeErr := writeSSE(w, "error", `{"error": "assistant unavailable"}`); writeErr != nil {
				slog.Warn("Failed to write SSE error event", "error", writeErr)
			}
			flusher.Flush()
			break
		}

		data, err := json.Marshal(chatDelta{MessageID: messageID, Delta: delta})
		if err != nil {
			slog.Warn("Failed to marshal chat delta", "error", err)
			continue
		}
		if err := writeSSE(w, "delta", string(data)); err != nil {
			slog.Warn("Failed to write SSE delta event", "error", err)
			// Breaking out of the range still lets the stream finalize
			// and persist the reply.
			return
		}
		flusher.Flush()
	}

	// Stream ended; send the finalized message so the client can reconcile.
	for _, msg := range h.mgr.Messages() {
		if msg.ID == messageID {
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Warn("Failed to marshal final message", "error", err)
				return
			}
			if err := writeSSE(w, "done", string(data)); err != nil {
				slog.Warn("Failed to write SSE done event", "error", err)
				return
			}
			flusher.Flush()
			return
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
