package gateway

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// client is the per-connection state: who owns the socket and a buffered
// outbound queue drained by writePump.
type client struct {
	conn      *websocket.Conn
	userID    uuid.UUID
	companyID uuid.UUID

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(conn *websocket.Conn, userID, companyID uuid.UUID) *client {
	return &client{
		conn:      conn,
		userID:    userID,
		companyID: companyID,
		send:      make(chan []byte, sendBufferSize),
	}
}

// enqueue hands a message to the write pump. Emitters snapshot room members
// outside the hub lock, so an enqueue can race the disconnect; once the
// client is closed the message is dropped. A client that cannot keep up also
// loses messages rather than blocking the emitter.
func (c *client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("[WARN] dropping gateway message for slow connection of user %s", c.userID)
	}
}

// readPump discards inbound frames; no client-to-server messages exist on
// this channel. It returns when the peer closes or errors.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}
