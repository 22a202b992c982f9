package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeongyiya/steno-caption/internal/service"
	"github.com/jeongyiya/steno-caption/internal/session"
	"go.uber.org/zap"
)

// EventsHandler streams broadcasts to viewers over Server-Sent Events.
type EventsHandler struct {
	svc    service.JobServicer
	access viewerAccess
	logger *zap.Logger
}

// NewEventsHandler creates the SSE handler.
func NewEventsHandler(svc service.JobServicer, auth Authorizer, issuer *session.Issuer, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, access: viewerAccess{auth: auth, issuer: issuer}, logger: logger}
}

// Stream godoc
// GET /events?job_id=
func (h *EventsHandler) Stream(c *gin.Context) {
	jobID := c.Query("job_id")
	if !h.access.allow(c, jobID) {
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	sub, unsub := h.svc.Subscribe(jobID)
	defer unsub()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case env, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, env.Data); err != nil {
				h.logger.Debug("sse write", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
