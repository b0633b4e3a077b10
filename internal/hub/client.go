package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024 // SDP payloads are a few KB; be generous
)

// client is one connected peer. The hub's Run loop owns registration; the
// two pumps own the connection's read and write sides respectively.
type client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// readPump relays inbound text messages to the hub's message callback until
// the connection drops, then hands the client back for unregistration.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if fn := c.hub.onMessage; fn != nil {
			fn(c.id, data)
		}
	}
}

// writePump serializes all writes to the connection. It exits when the send
// channel is closed by close(), sending a close frame on the way out.
func (c *client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// close releases the connection exactly once.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}
