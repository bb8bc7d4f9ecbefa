package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Events streams the race's change notifications as server-sent events until
// the client disconnects. A comment line is sent on every heartbeat.
func (h *Handler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	raceID := c.Param("id")
	if _, err := h.repo.GetRace(ctx, raceID); err != nil {
		return httpError(err)
	}

	ch, cancel := h.hub.Subscribe(raceID)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.log.Warn("encode event", zap.String("event_id", e.ID), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
