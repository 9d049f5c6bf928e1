package broadcast

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sermoncast/sermoncast/internal/shared"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ingestFrame is one translated fragment pushed by a broadcaster.
type ingestFrame struct {
	Language    string `json:"language"`
	Translation string `json:"translation"`
}

// HandleBroadcastIngest accepts a broadcaster's websocket and republishes
// each translated fragment onto the fan-out bridge.
func (h *Handler) HandleBroadcastIngest(c echo.Context) error {
	broadcastID := c.Param("id")

	b, err := h.store.GetBroadcast(c.Request().Context(), broadcastID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("broadcast_not_found", "no such broadcast")
		}
		return shared.InternalError("store_error", "failed to look up broadcast")
	}
	if b.Status != shared.BroadcastLive {
		return shared.Conflict("broadcast_ended", "broadcast is no longer live")
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "broadcast_id", broadcastID, "error", err)
		return err
	}
	defer ws.Close()

	h.log.Info("broadcaster connected", "broadcast_id", broadcastID)

	for {
		var frame ingestFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("broadcaster connection lost", "broadcast_id", broadcastID, "error", err)
			}
			break
		}
		if frame.Language == "" || frame.Translation == "" {
			continue
		}

		if err := h.bridge.Publish(c.Request().Context(), broadcastID, frame.Language, frame.Translation); err != nil {
			h.log.Error("failed to relay fragment", "broadcast_id", broadcastID, "error", err)
		}
	}

	h.log.Info("broadcaster disconnected", "broadcast_id", broadcastID)
	return nil
}
