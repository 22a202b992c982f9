package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jeongyiya/steno-caption/internal/model"
	"github.com/jeongyiya/steno-caption/internal/service"
	"github.com/jeongyiya/steno-caption/internal/session"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// WSConfig holds WebSocket transport settings.
type WSConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	PingInterval    time.Duration
	PingTimeout     time.Duration
	AllowedOrigins  []string // empty allows any origin
}

// peer is one WebSocket connection. Every peer receives broadcasts and may
// publish full_text frames.
type peer struct {
	conn        *websocket.Conn
	sub         *service.Subscription
	writerToken string
}

// StreamWSHandler handles realtime connections on /ws.
type StreamWSHandler struct {
	svc      service.JobServicer
	access   viewerAccess
	upgrader websocket.Upgrader
	cfg      WSConfig
	logger   *zap.Logger
}

// NewStreamWSHandler creates the WebSocket handler.
func NewStreamWSHandler(svc service.JobServicer, auth Authorizer, issuer *session.Issuer, cfg WSConfig, logger *zap.Logger) *StreamWSHandler {
	h := &StreamWSHandler{
		svc:    svc,
		access: viewerAccess{auth: auth, issuer: issuer},
		cfg:    cfg,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StreamWSHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and runs the pumps.
// Path: /ws?job_id=&writer_token=
// Without job_id the connection receives every job's broadcasts.
func (h *StreamWSHandler) ServeWS(c *gin.Context) {
	jobID := c.Query("job_id")
	if !h.access.allow(c, jobID) {
		return
	}

	// Subscribe before the handshake completes so a connected client never
	// misses a broadcast published right after it connects.
	sub, unsub := h.svc.Subscribe(jobID)
	defer unsub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if h.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageSize)
	}

	p := &peer{conn: conn, sub: sub, writerToken: c.Query("writer_token")}
	h.logger.Info("peer connected",
		zap.String("subscriber_id", sub.ID),
		zap.String("job_id", jobID),
		zap.String("remote", c.ClientIP()))

	done := make(chan struct{})
	go h.writePump(p, done)
	h.readPump(p)
	close(done)

	h.logger.Info("peer disconnected", zap.String("subscriber_id", sub.ID))
}

func (h *StreamWSHandler) readPump(p *peer) {
	defer func() {
		_ = p.conn.Close()
	}()
	_ = p.conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
	})
	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(h.cfg.PingTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		h.handleFrame(p, data)
	}
}

// handleFrame publishes a well-formed full_text frame. Anything else is
// dropped without a reply.
func (h *StreamWSHandler) handleFrame(p *peer, data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != model.EventFullText {
		return
	}
	var payload model.FullTextPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	jobID, text, ok := payload.Values()
	if !ok {
		return
	}
	token := payload.WriterToken
	if token == "" {
		token = p.writerToken
	}
	if err := h.svc.Publish(jobID, text, token); err != nil {
		h.logger.Debug("publish rejected",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}

func (h *StreamWSHandler) writePump(p *peer, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()
	for {
		select {
		case env, ok := <-p.sub.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := p.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
