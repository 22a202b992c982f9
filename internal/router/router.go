package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeongyiya/steno-caption/internal/handler"
	"github.com/jeongyiya/steno-caption/pkg/constants"
	"go.uber.org/zap"
)

// New builds the HTTP router. Client addresses come from X-Forwarded-For
// only when the request arrives from one of trustedProxies.
func New(
	jobs *handler.JobHandler,
	streamWS *handler.StreamWSHandler,
	events *handler.EventsHandler,
	health *handler.HealthHandler,
	trustedProxies []string,
	logger *zap.Logger,
) (http.Handler, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(Recovery(logger), RequestLogger(logger))

	r.GET(constants.PathHealthz, health.Healthz)
	r.GET(constants.PathPing, health.Ping)

	r.POST(constants.PathCreateJob, jobs.CreateJob)
	r.POST(constants.PathAuthJob, jobs.AuthJob)
	r.POST(constants.PathEndJob, jobs.EndJob)
	r.POST(constants.PathFullText, jobs.FullText)

	// Realtime: WebSocket for writers and viewers, SSE for read-only viewers.
	r.GET(constants.PathWS, streamWS.ServeWS)
	r.GET(constants.PathEvents, events.Stream)

	return r, nil
}
