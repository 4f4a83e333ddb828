package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/screentech/pressassist/internal/session"
)

// TranscriptStreamHandler pushes transcript events over a WebSocket so every
// open browser tab for the press stays in sync with the active session.
type TranscriptStreamHandler struct {
	hub               *session.Hub
	allowedOrigin     string
	isDev             bool
	keepaliveInterval time.Duration
}

// NewTranscriptStreamHandler creates a WebSocket handler over the session hub.
func NewTranscriptStreamHandler(hub *session.Hub, allowedOrigin string, isDev bool, keepaliveInterval time.Duration) *TranscriptStreamHandler {
	if keepaliveInterval <= 0 {
		keepaliveInterval = 10 * time.Second
	}
	return &TranscriptStreamHandler{
		hub:               hub,
		allowedOrigin:     allowedOrigin,
		isDev:             isDev,
		keepaliveInterval: keepaliveInterval,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *TranscriptStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	// Write-only connection: CloseRead discards client frames and cancels
	// the context when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	subID, events := h.hub.Subscribe(64)
	defer h.hub.Unsubscribe(subID)

	slog.Info("Transcript stream connected", "ip", r.RemoteAddr)

	keepalive := time.NewTicker(h.keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Transcript stream disconnected", "ip", r.RemoteAddr)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeJSON(ctx, ws, event); err != nil {
				slog.Debug("Transcript stream write error", "error", err)
				return
			}
		case <-keepalive.C:
			if err := ws.Ping(ctx); err != nil {
				slog.Debug("Transcript stream ping failed", "error", err)
				return
			}
		}
	}
}

func (h *TranscriptStreamHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *TranscriptStreamHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
