package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Large enough for SDP
	// descriptions with many candidates.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection. When it fills the hub drops
	// the message rather than stall unrelated sessions.
	sendQueueSize = 256
)

// Client wraps a single websocket connection to one peer process.
// It is the relay-side connection handle: the hub addresses clients by
// pointer identity and never touches the websocket directly.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send is the buffered outbound queue. The hub writes to it and
	// writePump drains it, keeping a single writer per connection.
	send chan *protocol.Message

	remoteAddr string
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan *protocol.Message, sendQueueSize),
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// readPump pumps messages from the websocket connection to the hub.
// There is at most one reader per connection; all reads happen here.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read failed", "remote", c.remoteAddr, "error", err)
			}
			return
		}

		c.hub.inbound <- inbound{client: c, msg: &msg}
	}
}

// writePump pumps messages from the hub to the websocket connection and
// keeps the connection alive with periodic pings. There is at most one
// writer per connection; all writes happen here.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel on detach.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("websocket write failed", "remote", c.remoteAddr, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
