// Package signaling is the client side of the relay wire protocol: a
// websocket connection plus a handler that fans inbound events out to
// typed channels.
package signaling

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closed    bool
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Message, 1),
		outgoing:  make(chan *protocol.Message, 1),
		done:      make(chan struct{}, 1),
	}
}

// Connect establishes the WebSocket connection to the relay.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.incoming <- &msg
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
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues a message for the relay.
func (c *Client) SendMessage(msg *protocol.Message) {
	c.outgoing <- msg
}

// Register asserts an identity for this connection.
func (c *Client) Register(id, clientType string) error {
	msg, err := protocol.NewMessage(protocol.EventRegister, protocol.RegisterPayload{
		Identity:   id,
		ClientType: clientType,
	})
	if err != nil {
		return err
	}
	c.SendMessage(msg)
	return nil
}

// SendEnvelope forwards a negotiation envelope to another identity.
func (c *Client) SendEnvelope(from, to string, kind protocol.Kind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := protocol.NewMessage(protocol.EventForward, protocol.Envelope{
		From:    from,
		To:      to,
		Kind:    kind,
		Payload: raw,
	})
	if err != nil {
		return err
	}
	c.SendMessage(msg)
	return nil
}

// SendAnswer sends an Answer on the dedicated accept-forward path.
func (c *Client) SendAnswer(to string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := protocol.NewMessage(protocol.EventAcceptForward, protocol.AcceptForwardPayload{
		To:      to,
		Kind:    protocol.KindAnswer,
		Payload: raw,
	})
	if err != nil {
		return err
	}
	c.SendMessage(msg)
	return nil
}

// Incoming returns the channel of decoded relay messages.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true

	close(c.done)
}
