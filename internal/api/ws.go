package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// EventsHandler streams orchestrator events (dispatch started, hand-off,
// completed, upload) over a WebSocket so a frontend can show live session
// activity without polling /api/state.
type EventsHandler struct {
	*Handler
}

// NewEventsHandler creates a new events stream handler.
func NewEventsHandler(base *Handler) *EventsHandler {
	return &EventsHandler{Handler: base}
}

// ServeHTTP upgrades the connection and forwards events until the client
// disconnects.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	events, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain reads so pings and client close frames are processed.
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				slog.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}
