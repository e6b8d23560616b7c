package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
)

const liveWriteTimeout = 10 * time.Second

// liveRecords streams one JSON view per commit over a websocket. Query
// parameters narrow the view the same way as GET /v1/records.
func (h *Handler) liveRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hub := h.service.Hub()
	if hub == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: "live view is not configured"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context(), "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	views, unsubscribe, err := hub.Subscribe(ctx, filter)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}
	defer unsubscribe()

	// The client only talks to close; any read error ends the feed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logging.Debug(ctx, "live feed opened")
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "live view closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(view); err != nil {
				logging.Debug(ctx, "live feed closed", slog.Any("err", errs.Loggable(err)))
				return
			}
		}
	}
}
