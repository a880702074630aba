package api

import (
	"io"

	"github.com/gin-gonic/gin"
)

// streamAssignments pushes assignment lifecycle events to the client as
// server-sent events until the client disconnects.
func (h *Handler) streamAssignments(c *gin.Context) {
	id, events := h.events.Subscribe()
	defer h.events.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-clientGone:
			return false
		}
	})
}
