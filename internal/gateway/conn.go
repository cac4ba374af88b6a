package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"community-gateway/internal/events"
	"community-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one live authenticated connection. A user may own several at once
// (tabs, devices); presence and user fan-out treat them as a union.
type Conn struct {
	ID       string
	UserID   string
	Username string

	sock      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	onClose   func(*Conn)

	writeWait time.Duration
	pongWait  time.Duration
}

func newConn(sock *websocket.Conn, userID, username string, opts Options, onClose func(*Conn)) *Conn {
	return &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		sock:      sock,
		send:      make(chan []byte, opts.SendBufferSize),
		closed:    make(chan struct{}),
		onClose:   onClose,
		writeWait: opts.WriteWait,
		pongWait:  opts.PongWait,
	}
}

// Enqueue offers a frame to the connection's send queue without blocking.
// A full queue means the consumer is too slow to be worth keeping: the frame
// is dropped and the connection closed; the client recovers by re-fetching
// state after its reconnect.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		logger.Debug("Dropping frame for slow connection %s (user %s)", c.ID, c.UserID)
		go c.shutdown()
		return false
	}
}

// shutdown tears the connection down exactly once: registry removal first so
// membership never outlives the socket, then the socket itself.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose(c)
		}
		if c.sock != nil {
			c.sock.Close()
		}
	})
}

// CloseWithCode sends a close frame before tearing down. Used for forced
// closes such as mid-session credential invalidation.
func (c *Conn) CloseWithCode(code int, reason string) {
	if c.sock != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(c.writeWait)
		if err := c.sock.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			logger.Debug("Close frame write failed for %s: %v", c.ID, err)
		}
	}
	c.shutdown()
}

// readPump consumes control messages until the socket fails, then runs the
// teardown. Unknown control types are ignored.
func (c *Conn) readPump(handle func(*Conn, events.Control)) {
	defer c.shutdown()

	c.sock.SetReadLimit(1024)
	c.sock.SetReadDeadline(time.Now().Add(c.pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on %s: %v", c.ID, err)
			}
			return
		}

		var ctrl events.Control
		if err := json.Unmarshal(message, &ctrl); err != nil {
			logger.Debug("Ignoring malformed control message from %s: %v", c.ID, err)
			continue
		}
		handle(c, ctrl)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case <-c.closed:
			return

		case msg, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
