package signaling

import (
	"sync"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

// Handler routes incoming relay messages to typed channels.
type Handler struct {
	client *Client

	RegisterAck   chan protocol.RegisterAckPayload
	Deliver       chan protocol.DeliverPayload
	DeliveryError chan protocol.DeliveryErrorPayload
	PeerLeft      chan protocol.PeerLeftPayload
	Superseded    chan protocol.SupersededPayload
	Err           chan string

	// Disconnected closes when the relay connection drops.
	Disconnected chan struct{}

	closeOnce sync.Once
}

func NewHandler(client *Client) *Handler {
	return &Handler{
		client:        client,
		RegisterAck:   make(chan protocol.RegisterAckPayload, 1),
		Deliver:       make(chan protocol.DeliverPayload, 32),
		DeliveryError: make(chan protocol.DeliveryErrorPayload, 1),
		PeerLeft:      make(chan protocol.PeerLeftPayload, 1),
		Superseded:    make(chan protocol.SupersededPayload, 1),
		Err:           make(chan string, 1),
		Disconnected:  make(chan struct{}),
	}
}

// Start consumes the client's incoming stream until the connection
// closes. Run it in its own goroutine.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Type {

		case protocol.EventRegisterAck:
			var ack protocol.RegisterAckPayload
			if msg.DecodePayload(&ack) == nil {
				h.RegisterAck <- ack
			}

		case protocol.EventDeliver:
			var d protocol.DeliverPayload
			if msg.DecodePayload(&d) == nil {
				h.Deliver <- d
			}

		case protocol.EventDeliveryError:
			var de protocol.DeliveryErrorPayload
			if msg.DecodePayload(&de) == nil {
				h.DeliveryError <- de
			}

		case protocol.EventPeerLeft:
			var pl protocol.PeerLeftPayload
			if msg.DecodePayload(&pl) == nil {
				h.PeerLeft <- pl
			}

		case protocol.EventSuperseded:
			var s protocol.SupersededPayload
			if msg.DecodePayload(&s) == nil {
				h.Superseded <- s
			}

		case protocol.EventError:
			var e protocol.ErrorPayload
			if msg.DecodePayload(&e) == nil {
				h.Err <- e.Error
			} else {
				h.Err <- "unknown error from relay"
			}

		default:
		}
	}

	close(h.Disconnected)
}

// Close closes all handler channels. It waits for Start to finish so a
// send cannot race the close; callers close the client first, which
// ends the incoming stream and lets Start return.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		<-h.Disconnected

		close(h.RegisterAck)
		close(h.Deliver)
		close(h.DeliveryError)
		close(h.PeerLeft)
		close(h.Superseded)
		close(h.Err)
	})
}
