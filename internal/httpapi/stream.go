package httpapi

import (
	"errors"

	"holdline/internal/broadcast"
	"holdline/internal/calls"
	"holdline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StreamCall pushes status snapshots as Server-Sent Events until the call ends
// or the client goes away.
func (h Handlers) StreamCall(c *gin.Context) {
	call, ok := h.ownedCall(c)
	if !ok {
		return
	}
	log := logger.ForCall(c.Request.Context(), call.ID)

	if h.Listened != nil {
		h.Listened.StatusStreamOpened()
		defer h.Listened.StatusStreamClosed()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	err := h.Streamer.Stream(c.Request.Context(), call.ID, func(s broadcast.Snapshot) error {
		c.SSEvent("status", s)
		c.Writer.Flush()
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, calls.ErrNotFound):
		c.SSEvent("error", gin.H{"error": "call not found"})
		c.Writer.Flush()
	default:
		log.Warn("status stream ended", "err", err)
	}
}
