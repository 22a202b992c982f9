package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeongyiya/steno-caption/internal/session"
)

// viewerAccess gates job-filtered subscriptions on the viewer's session.
// Unfiltered subscriptions receive every job and need no session.
type viewerAccess struct {
	auth   Authorizer
	issuer *session.Issuer
}

// allow reports whether the request may subscribe to jobID and writes a 403
// when it may not.
func (v viewerAccess) allow(c *gin.Context, jobID string) bool {
	if jobID == "" {
		return true
	}
	sid, ok := v.issuer.FromRequest(c.Request)
	if ok && v.auth.IsAuthorized(sid, jobID) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"ok": false, "message": "job not authorized for this session"})
	return false
}
