package ws

import (
	"net/http"
	"sync"
	"time"

	apihttp "github.com/GriffinCanCode/ptyhost/internal/api/http"
	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/host"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/shared/id"
	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// A single input command may carry up to utils.MaxInputSize bytes of
	// keystrokes plus its envelope.
	maxMessageSize = utils.MaxInputSize + 4096
)

// Frame types sent to the client.
const (
	FrameSystem = "system"
	FrameEvent  = "event"
	FrameAck    = "ack"
	FrameError  = "error"
	FramePong   = "pong"
)

// Frame is one server-to-client message.
type Frame struct {
	Type         string        `json:"type"`
	Topic        string        `json:"topic,omitempty"`
	Event        *events.Event `json:"event,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
	Status       int           `json:"status,omitempty"`
	ConnectionID string        `json:"connection_id,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	host     *host.Host
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. allowOrigin decides which browser
// origins may connect; requests without an Origin header are always
// accepted since they do not come from a browser.
func NewHandler(h *host.Host, allowOrigin func(string) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		host:    h,
		metrics: h.Metrics(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
	}
}

// conn serializes writes to one websocket connection.
type conn struct {
	ws      *websocket.Conn
	id      id.ConnectionID
	metrics *monitoring.Metrics
	mu      sync.Mutex
}

func (c *conn) send(f Frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", f.Type)
	return nil
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *conn) close(code int, reason string) {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.mu.Unlock()
	_ = c.ws.Close()
}

// HandleConnection upgrades the request and streams host events to the
// client until either side goes away. ?id= restricts the stream to one
// session.
func (h *Handler) HandleConnection(c *gin.Context) {
	var filter func(events.Event) bool
	if sessionID := c.Query("id"); sessionID != "" {
		if err := utils.ValidateID(sessionID, "id"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = events.ForID(sessionID)
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cn := &conn{ws: ws, id: id.NewConnectionID(), metrics: h.metrics}
	log := h.logger.With(zap.String("connection_id", cn.id.String()))
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()
	log.Debug("Stream connected", zap.String("filter_id", c.Query("id")))

	// Subscribe before the welcome frame so nothing emitted in between is
	// lost; the subscription buffers until forward starts.
	sub := h.host.Subscribe(filter)
	_ = cn.send(Frame{
		Type:         FrameSystem,
		Message:      "connected",
		ConnectionID: cn.id.String(),
	})

	done := make(chan struct{})
	go h.forward(cn, sub, log, done)

	h.readLoop(cn, log)

	sub.Close()
	<-done
	_ = ws.Close()
	log.Debug("Stream disconnected")
}

// forward writes hub events to the client and keeps the connection alive.
// It closes the connection when the subscription ends.
func (h *Handler) forward(cn *conn, sub *events.Subscription, log *zap.Logger, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				if sub.Overflowed() {
					log.Warn("Stream fell behind, closing")
					_ = cn.send(Frame{Type: FrameError, Error: "event stream overflowed, reconnect"})
					cn.close(websocket.CloseTryAgainLater, "overflow")
				} else {
					cn.close(websocket.CloseGoingAway, "closing")
				}
				return
			}
			if err := cn.send(Frame{Type: FrameEvent, Topic: e.Topic(), Event: &e}); err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				_ = cn.ws.Close()
				// Drain so the hub never sees this subscriber as slow
				// before the reader notices the closed socket.
				for range sub.Events() {
				}
				return
			}
		case <-ticker.C:
			if err := cn.ping(); err != nil {
				_ = cn.ws.Close()
				for range sub.Events() {
				}
				return
			}
		}
	}
}

func (h *Handler) readLoop(cn *conn, log *zap.Logger) {
	cn.ws.SetReadLimit(maxMessageSize)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Stream read error", zap.Error(err))
			}
			return
		}
		_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = cn.send(Frame{Type: FrameError, Error: "malformed message", Status: http.StatusBadRequest})
			continue
		}
		h.metrics.RecordWSMessage("in", messageLabel(msg.Type))
		h.dispatch(cn, msg)
	}
}

func (h *Handler) dispatch(cn *conn, msg types.WSMessage) {
	requestID := msg.RequestID
	if requestID == "" {
		requestID = id.NewRequestID().String()
	}

	var err error
	switch msg.Type {
	case types.WSPing:
		_ = cn.send(Frame{Type: FramePong, RequestID: msg.RequestID})
		return
	case types.WSInput:
		err = h.host.WriteInteractive(msg.ID, []byte(msg.Data))
	case types.WSResize:
		err = h.host.ResizeInteractive(msg.ID, msg.Rows, msg.Cols)
	case types.WSCancel:
		err = h.host.Cancel(msg.ID)
	default:
		_ = cn.send(Frame{
			Type:      FrameError,
			RequestID: requestID,
			Error:     "unknown message type",
			Status:    http.StatusBadRequest,
		})
		return
	}

	if err != nil {
		_ = cn.send(Frame{
			Type:      FrameError,
			RequestID: requestID,
			Error:     err.Error(),
			Status:    apihttp.StatusFor(err),
		})
		return
	}
	_ = cn.send(Frame{Type: FrameAck, RequestID: requestID})
}

// messageLabel bounds the metric label set to the known command types.
func messageLabel(t string) string {
	switch t {
	case types.WSInput, types.WSResize, types.WSCancel, types.WSPing:
		return t
	}
	return "unknown"
}
