package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Room commands sent by clients
const (
	CmdJoinAdminRoom     = "join_admin_room"
	CmdLeaveAdminRoom    = "leave_admin_room"
	CmdJoinStudentRoom   = "join_student_room"
	CmdLeaveStudentRoom  = "leave_student_room"
	CmdJoinLecturerRoom  = "join_lecturer_room"
	CmdLeaveLecturerRoom = "leave_lecturer_room"

	EventJoined = "joined"
	EventLeft   = "left"
	EventError  = "error"
)

var (
	ErrSlowConsumer = errors.New("client send buffer full")
	ErrClientClosed = errors.New("client closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection
type Client struct {
	id           string
	conn         *websocket.Conn
	hub          *Hub
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	canJoinAdmin bool
	logger       *zap.Logger
}

type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomAck struct {
	Room string `json:"room"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the connection until it closes.
// canJoinAdmin is decided by the caller from the request credentials.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, canJoinAdmin bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	c := &Client{
		id:           id,
		conn:         conn,
		hub:          h,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		canJoinAdmin: canJoinAdmin,
		logger:       h.logger.With(zap.String("connection_id", id)),
	}

	h.metrics.ConnectionOpened()
	c.logger.Debug("Client connected", zap.Bool("admin", canJoinAdmin))

	go c.writePump()
	go c.readPump()
}

func (c *Client) ID() string {
	return c.id
}

// Deliver queues msg without blocking. A client that cannot keep up is
// disconnected; it re-fetches state when it reconnects.
func (c *Client) Deliver(msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.registry.Remove(c)
		c.close()
		c.conn.Close()
		c.hub.metrics.ConnectionClosed()
		c.logger.Debug("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handle applies one room command
func (c *Client) handle(msg clientMessage) {
	registry := c.hub.registry

	switch msg.Event {
	case CmdJoinAdminRoom:
		if !c.canJoinAdmin {
			c.reply(EventError, errorPayload{Message: "admin token required"})
			return
		}
		registry.JoinAdmin(c)
		c.reply(EventJoined, roomAck{Room: model.AdminRoom})

	case CmdLeaveAdminRoom:
		registry.LeaveAdmin(c)
		c.reply(EventLeft, roomAck{Room: model.AdminRoom})

	case CmdJoinStudentRoom, CmdJoinLecturerRoom:
		room, err := registry.JoinBorrower(c, commandKind(msg.Event), borrowerIDFrom(msg.Data))
		if err != nil {
			c.reply(EventError, errorPayload{Message: err.Error()})
			return
		}
		c.reply(EventJoined, roomAck{Room: room})

	case CmdLeaveStudentRoom, CmdLeaveLecturerRoom:
		kind := commandKind(msg.Event)
		id := borrowerIDFrom(msg.Data)
		registry.LeaveBorrower(c, kind, id)
		c.reply(EventLeft, roomAck{Room: model.BorrowerRoom(kind, id)})

	default:
		c.reply(EventError, errorPayload{Message: "unknown command " + msg.Event})
	}
}

func (c *Client) reply(event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	if err := c.Deliver(msg); err != nil {
		c.logger.Warn("Reply dropped", zap.String("event", event), zap.Error(err))
	}
}

func commandKind(cmd string) model.BorrowerKind {
	if strings.Contains(cmd, "lecturer") {
		return model.BorrowerLecturer
	}
	return model.BorrowerStudent
}

// borrowerIDFrom accepts "12345", 12345 or {"borrower_id": "12345"}
func borrowerIDFrom(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}

	var obj struct {
		BorrowerID string `json:"borrower_id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.BorrowerID)
	}

	return ""
}
