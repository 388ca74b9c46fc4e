package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type noteChangeEvent struct {
	NoteIDs   []string `json:"noteIds"`
	Operation string   `json:"operation"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
}

type heartbeatEvent struct {
	Timestamp string `json:"timestamp"`
}

// handleNotesStream emits a server-sent event after every note mutation so
// clients can re-run passage matching.
func (h *httpHandler) handleNotesStream(c *gin.Context) {
	subject := c.GetString(subjectContextKey)
	if subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	messages, cleanup := h.realtime.Subscribe(ctx, subject)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, noteChangeEvent{
				NoteIDs:   message.NoteIDs,
				Operation: message.Operation,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSource,
			})
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, heartbeatEvent{Timestamp: tick.UTC().Format(time.RFC3339Nano)})
			return true
		}
	})
}
