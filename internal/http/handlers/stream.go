package handlers

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/hospitalms/patient-portal/internal/appointments"
	"github.com/hospitalms/patient-portal/internal/session"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// StreamHandler pushes a session's appointment list over a websocket every
// time the list changes.
type StreamHandler struct {
	now    func() time.Time
	logger *logging.Logger
}

// InboundMessage is what the portal UI sends on the stream.
type InboundMessage struct {
	Type string `json:"type"` // "ping", "refresh"
}

// OutboundMessage is what the stream sends to the portal UI.
type OutboundMessage struct {
	Type         string            `json:"type"` // "appointments", "pong", "error"
	Appointments []appointmentView `json:"appointments,omitempty"`
	SelectedID   string            `json:"selectedId,omitempty"`
	Text         string            `json:"text,omitempty"`
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(now func() time.Time, logger *logging.Logger) *StreamHandler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StreamHandler{now: now, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and streams appointment snapshots.
// GET /api/appointments/stream
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, sess)
	}).ServeHTTP(w, r)
}

type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

func (h *StreamHandler) snapshot(store *appointments.Store, list []appointments.Appointment) OutboundMessage {
	msg := OutboundMessage{
		Type:         "appointments",
		Appointments: viewsFor(list, appointments.DateOf(h.now())),
	}
	if selected, ok := store.Selected(); ok {
		msg.SelectedID = selected.ID
	}
	return msg
}

func (h *StreamHandler) serveWS(conn *websocket.Conn, sess *session.Session) {
	sc := &streamConn{conn: conn}
	updates, unsubscribe := sess.Store.Subscribe()
	defer unsubscribe()

	if err := sc.send(h.snapshot(sess.Store, sess.Store.List())); err != nil {
		return
	}
	h.logger.Info("appointment stream opened", "session_id", sess.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg InboundMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				h.logger.Debug("appointment stream closed", "session_id", sess.ID, "error", err)
				return
			}
			switch msg.Type {
			case "ping":
				_ = sc.send(OutboundMessage{Type: "pong"})
			case "refresh":
				_ = sc.send(h.snapshot(sess.Store, sess.Store.List()))
			default:
				_ = sc.send(OutboundMessage{Type: "error", Text: "unknown message type"})
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case list, ok := <-updates:
			if !ok {
				return
			}
			if err := sc.send(h.snapshot(sess.Store, list)); err != nil {
				return
			}
		}
	}
}
