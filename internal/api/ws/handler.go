package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/api/middleware"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/delivery"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/monitoring"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 4096
)

// Options wires a Handler. Metrics is optional.
type Options struct {
	Registry target.Registry
	Recorder delivery.Recorder
	Prober   delivery.Prober
	Timeouts delivery.Timeouts
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Handler manages view channel connections
type Handler struct {
	registry target.Registry
	recorder delivery.Recorder
	prober   delivery.Prober
	timeouts delivery.Timeouts
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new view channel handler
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: opts.Registry,
		recorder: opts.Recorder,
		prober:   opts.Prober,
		timeouts: opts.Timeouts,
		metrics:  opts.Metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// frame is the wire shape of every view channel message.
type frame struct {
	Type        string                 `json:"type"`
	Mode        types.Mode             `json:"mode,omitempty"`
	Attempt     string                 `json:"attempt,omitempty"`
	Src         string                 `json:"src,omitempty"`
	Status      types.Status           `json:"status,omitempty"`
	Reason      types.Reason           `json:"reason,omitempty"`
	Performance *telemetry.Performance `json:"performance,omitempty"`
}

const (
	frameRender  = "render"
	frameSettled = "settled"
)

// HandleView upgrades the request and runs one view to settled.
func (h *Handler) HandleView(c *gin.Context) {
	slug := c.Param("slug")
	t, err := h.registry.Lookup(slug)
	if errors.Is(err, target.ErrNotFound) {
		c.String(http.StatusNotFound, "unknown demo: %s", slug)
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "registry error")
		return
	}

	var forced types.Mode
	if raw := c.Query("mode"); raw != "" {
		mode, ok := types.ParseMode(raw)
		if !ok {
			c.String(http.StatusBadRequest, "unknown mode: %s", raw)
			return
		}
		forced = mode
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("view channel upgrade failed", zap.String("slug", slug), zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncViewsActive()
		defer h.metrics.DecViewsActive()
	}

	surface := &connSurface{conn: conn, metrics: h.metrics}
	cfg := delivery.Config{
		Target:   t,
		Session:  middleware.SessionID(c),
		Forced:   forced,
		Timeouts: h.timeouts,
		Surface:  surface,
		Recorder: h.recorder,
		Prober:   h.prober,
		Logger:   h.logger,
	}
	if h.metrics != nil {
		cfg.Observer = h.metrics
	}
	view := delivery.NewView(cfg)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		h.readLoop(conn, view)
	}()

	if _, err := view.Run(ctx); err != nil {
		h.logger.Debug("view channel closed before settle",
			zap.String("view_id", view.ID().String()),
			zap.Error(err),
		)
		return
	}

	surface.close()
	<-readerDone
}

// readLoop turns client frames into view signals until the socket closes.
func (h *Handler) readLoop(conn *websocket.Conn, view *delivery.View) {
	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg frame
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed view frame", zap.Error(err))
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		sig, ok := toSignal(msg)
		if !ok {
			h.logger.Debug("ignoring view frame", zap.String("type", msg.Type))
			continue
		}
		view.Deliver(sig)
	}
}

func toSignal(msg frame) (delivery.Signal, bool) {
	switch delivery.SignalKind(msg.Type) {
	case delivery.SignalProxyStatus:
		if msg.Status != types.StatusOK && msg.Status != types.StatusError {
			return delivery.Signal{}, false
		}
		return delivery.Signal{
			Kind:        delivery.SignalProxyStatus,
			Attempt:     msg.Attempt,
			Status:      msg.Status,
			Reason:      msg.Reason,
			Performance: msg.Performance,
		}, true
	case delivery.SignalEmbedLoad:
		return delivery.Signal{
			Kind:        delivery.SignalEmbedLoad,
			Attempt:     msg.Attempt,
			Performance: msg.Performance,
		}, true
	}
	return delivery.Signal{}, false
}

// connSurface writes render instructions to one socket.
type connSurface struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

func (s *connSurface) Render(_ context.Context, r delivery.Render) error {
	return s.send(frame{Type: frameRender, Mode: r.Mode, Attempt: r.Attempt, Src: r.Src})
}

func (s *connSurface) Settled(_ context.Context, mode types.Mode) error {
	return s.send(frame{Type: frameSettled, Mode: mode})
}

func (s *connSurface) send(f frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordWSMessage("out", f.Type)
	}
	return nil
}

// close starts the closing handshake. The read deadline bounds the wait for
// the client's reply.
func (s *connSurface) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "settled")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = s.conn.SetReadDeadline(deadline)
}
