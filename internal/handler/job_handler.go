package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeongyiya/steno-caption/internal/errs"
	"github.com/jeongyiya/steno-caption/internal/model"
	"github.com/jeongyiya/steno-caption/internal/service"
	"github.com/jeongyiya/steno-caption/internal/session"
	"github.com/jeongyiya/steno-caption/pkg/constants"
	"go.uber.org/zap"
)

// Authorizer is the viewer authorization store.
type Authorizer interface {
	AuthorizeClient(client, sessionID, jobID string, pin *string) error
	IsAuthorized(sessionID, jobID string) bool
	ExpiresAt(sessionID string) time.Time
}

// JobHandler handles the job REST API.
type JobHandler struct {
	svc    service.JobServicer
	auth   Authorizer
	issuer *session.Issuer
	logger *zap.Logger
}

// NewJobHandler creates a job handler.
func NewJobHandler(svc service.JobServicer, auth Authorizer, issuer *session.Issuer, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, auth: auth, issuer: issuer, logger: logger}
}

// CreateJob godoc
// POST /create_job
func (h *JobHandler) CreateJob(c *gin.Context) {
	job, err := h.svc.Create()
	if err != nil {
		h.logger.Error("create job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}
	c.JSON(http.StatusOK, model.CreateJobResponse{
		JobID:       job.ID,
		PIN:         job.PIN,
		WriterToken: job.WriterToken,
	})
}

// AuthJob godoc
// POST /auth_job
func (h *JobHandler) AuthJob(c *gin.Context) {
	var req model.AuthJobRequest
	decodeLenient(c.Request.Body, &req)

	sid, ok := h.issuer.FromRequest(c.Request)
	if !ok {
		sid = session.NewSessionID()
	}

	err := h.auth.AuthorizeClient(c.ClientIP(), sid, req.JobID, pinString(req.PIN))
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrMissingParameter):
		c.JSON(http.StatusBadRequest, model.OKResponse{Message: err.Error()})
		return
	case errors.Is(err, errs.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, model.OKResponse{Message: err.Error()})
		return
	case errors.Is(err, errs.ErrInvalidSession):
		c.JSON(http.StatusForbidden, model.OKResponse{Message: errs.ErrInvalidSession.Error()})
		return
	case errors.Is(err, errs.ErrWrongPIN):
		c.JSON(http.StatusForbidden, model.OKResponse{Message: errs.ErrWrongPIN.Error()})
		return
	default:
		h.logger.Error("authorize", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.OKResponse{Message: "internal error"})
		return
	}

	cookie, err := h.issuer.Cookie(sid, h.auth.ExpiresAt(sid))
	if err != nil {
		h.logger.Error("session cookie", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.OKResponse{Message: "internal error"})
		return
	}
	http.SetCookie(c.Writer, cookie)
	c.JSON(http.StatusOK, model.OKResponse{OK: true})
}

// EndJob godoc
// POST /end_job
func (h *JobHandler) EndJob(c *gin.Context) {
	var req model.EndJobRequest
	decodeLenient(c.Request.Body, &req)
	if req.JobID == "" {
		c.JSON(http.StatusNotFound, model.OKResponse{})
		return
	}
	token := req.WriterToken
	if token == "" {
		token = c.GetHeader(constants.HeaderWriterToken)
	}
	err := h.svc.End(req.JobID, token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, model.OKResponse{OK: true})
	case errors.Is(err, errs.ErrJobNotFound):
		c.JSON(http.StatusNotFound, model.OKResponse{})
	case errors.Is(err, errs.ErrWriterTokenMismatch):
		c.JSON(http.StatusForbidden, model.OKResponse{Message: err.Error()})
	default:
		h.logger.Error("end job", zap.String("job_id", req.JobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.OKResponse{})
	}
}

// FullText godoc
// POST /api/fulltext
// The raw body is broadcast under the GLOBAL job id.
func (h *JobHandler) FullText(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Debug("read fulltext body", zap.Error(err))
	}
	h.svc.PublishGlobal(string(body))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte("OK"))
}

// decodeLenient decodes a JSON object into dst. Anything that is not a JSON
// object leaves dst zero-valued so the caller reports missing parameters.
func decodeLenient(body io.Reader, dst any) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	_ = dec.Decode(dst)
}

// pinString converts a decoded pin to text. Numbers keep their literal form.
func pinString(v any) *string {
	var s string
	switch p := v.(type) {
	case nil:
		return nil
	case string:
		s = p
	case json.Number:
		s = p.String()
	default:
		s = fmt.Sprint(p)
	}
	return &s
}
