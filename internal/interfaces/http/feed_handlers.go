package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Stats handles GET /api/v1/stats
func (h *Handlers) Stats(c *gin.Context) {
	snapshot, err := h.services.Stats.Snapshot(c.Request.Context(), mustActor(c), scopeQuery(c))
	if err != nil {
		h.respondError(c, "Get statistics", err)
		return
	}
	h.respondOK(c, http.StatusOK, snapshot)
}

// Feed handles GET /api/v1/feed as a server-sent event stream. Each change
// event is sent with its type as the SSE event name; clients refetch the
// affected lists on receipt.
func (h *Handlers) Feed(c *gin.Context) {
	actor := mustActor(c)
	events, cancel, scope, err := h.services.Feed.Follow(c.Request.Context(), actor, scopeQuery(c))
	if err != nil {
		h.respondError(c, "Follow feed", err)
		return
	}
	defer cancel()

	heartbeat := h.config.FeedHeartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", scope)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Type), evt)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})

	h.logger.Info("Feed client disconnected", "user_id", actor.ID, "scope", scope.Key())
}
