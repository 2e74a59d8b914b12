package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Jaypalsingh1/sovereignshare/internal/identity"
	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

// inbound pairs a decoded message with the connection it arrived on.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Status is the snapshot served on the /status endpoint.
type Status struct {
	Status            string  `json:"status"`
	ActiveConnections int     `json:"activeConnections"`
	RegisteredUsers   int     `json:"registeredUsers"`
	Uptime            float64 `json:"uptime"`
}

// Hub routes signaling envelopes between registered connections.
//
// All mutable relay state (the identity registry and the connection set)
// is owned by the single goroutine running Run. Each inbound message is
// handled to completion before the next one is taken, so registry
// operations are atomic with respect to each other without locking.
type Hub struct {
	registry    *Registry
	connections map[*Client]struct{}

	attach    chan *Client
	detach    chan *Client
	inbound   chan inbound
	statusReq chan chan Status

	started time.Time
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:    NewRegistry(),
		connections: make(map[*Client]struct{}),
		attach:      make(chan *Client),
		detach:      make(chan *Client),
		inbound:     make(chan inbound),
		statusReq:   make(chan chan Status),
		started:     time.Now(),
		logger:      logger,
	}
}

// Run starts the hub's processing loop. It must run in exactly one
// goroutine for the lifetime of the relay.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.attach:
			h.connections[c] = struct{}{}
			h.logger.Info("client connected", "remote", c.remoteAddr, "connections", len(h.connections))

		case c := <-h.detach:
			h.handleDisconnect(c)

		case in := <-h.inbound:
			h.handleMessage(in.client, in.msg)

		case reply := <-h.statusReq:
			reply <- Status{
				Status:            "ok",
				ActiveConnections: len(h.connections),
				RegisteredUsers:   h.registry.Len(),
				Uptime:            time.Since(h.started).Seconds(),
			}
		}
	}
}

// Snapshot returns current hub counters. Safe to call from any
// goroutine; the hub answers from its own loop.
func (h *Hub) Snapshot() Status {
	reply := make(chan Status, 1)
	h.statusReq <- reply
	return <-reply
}

func (h *Hub) handleMessage(c *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.EventRegister:
		h.handleRegister(c, msg)
	case protocol.EventForward:
		h.handleForward(c, msg)
	case protocol.EventAcceptForward:
		h.handleAcceptForward(c, msg)
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "remote", c.remoteAddr)
		h.sendError(c, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (h *Hub) handleRegister(c *Client, msg *protocol.Message) {
	var reg protocol.RegisterPayload
	if err := msg.DecodePayload(&reg); err != nil {
		h.sendError(c, "malformed register payload")
		return
	}
	if !identity.Valid(reg.Identity) {
		h.sendError(c, fmt.Sprintf("invalid identity: %q", reg.Identity))
		return
	}

	if evicted := h.registry.Register(c, reg.Identity); evicted != nil {
		h.logger.Warn("identity re-registered, evicting prior connection",
			"identity", reg.Identity, "old_remote", evicted.remoteAddr, "new_remote", c.remoteAddr)
		h.push(evicted, protocol.EventSuperseded, protocol.SupersededPayload{
			Identity: reg.Identity,
			Reason:   "identity registered from another connection",
		})
	}

	h.logger.Info("identity registered", "identity", reg.Identity, "remote", c.remoteAddr)
	h.push(c, protocol.EventRegisterAck, protocol.RegisterAckPayload{
		Identity:   reg.Identity,
		ServerTime: time.Now().UTC(),
	})
}

func (h *Hub) handleForward(c *Client, msg *protocol.Message) {
	var env protocol.Envelope
	if err := msg.DecodePayload(&env); err != nil {
		h.sendError(c, "malformed envelope")
		return
	}
	h.forward(c, &env)
}

// handleAcceptForward is the dedicated Answer path. The relay stamps the
// sender identity itself and only accepts Answer envelopes on it.
func (h *Hub) handleAcceptForward(c *Client, msg *protocol.Message) {
	var accept protocol.AcceptForwardPayload
	if err := msg.DecodePayload(&accept); err != nil {
		h.sendError(c, "malformed accept payload")
		return
	}
	if accept.Kind != protocol.KindAnswer {
		h.sendError(c, fmt.Sprintf("accept-forward carries %q, want %q", accept.Kind, protocol.KindAnswer))
		return
	}

	from, ok := h.registry.Identity(c)
	if !ok {
		h.sendError(c, "not registered")
		return
	}

	h.forward(c, &protocol.Envelope{
		From:    from,
		To:      accept.To,
		Kind:    accept.Kind,
		Payload: accept.Payload,
	})
}

// forward validates and routes one envelope. Errors always go back to
// the originating connection only, never to anyone else.
func (h *Hub) forward(c *Client, env *protocol.Envelope) {
	if err := env.Validate(); err != nil {
		h.sendError(c, err.Error())
		return
	}

	from, ok := h.registry.Identity(c)
	if !ok {
		h.sendError(c, "not registered")
		return
	}
	if env.From != from {
		// Spoofed origin. Reject and log, never forward.
		h.logger.Warn("envelope from field does not match registered identity",
			"claimed", env.From, "registered", from, "remote", c.remoteAddr)
		h.sendError(c, fmt.Sprintf("from %q does not match registered identity", env.From))
		return
	}

	target, ok := h.registry.Resolve(env.To)
	if !ok {
		h.push(c, protocol.EventDeliveryError, protocol.DeliveryErrorPayload{
			TargetIdentity: env.To,
			Reason:         "target not found",
		})
		return
	}

	h.logger.Debug("forwarding envelope", "from", env.From, "to", env.To, "kind", env.Kind)
	h.push(target, protocol.EventDeliver, protocol.DeliverPayload{
		From:      env.From,
		Kind:      env.Kind,
		Payload:   env.Payload,
		RelayTime: time.Now().UTC(),
	})
}

func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)

	if id, ok := h.registry.Unregister(c); ok {
		h.logger.Info("identity unregistered", "identity", id, "remote", c.remoteAddr)
		// Best-effort notice so an active partner can detect silent loss.
		for other := range h.connections {
			h.push(other, protocol.EventPeerLeft, protocol.PeerLeftPayload{
				Identity: id,
				Reason:   "disconnected",
			})
		}
	} else {
		h.logger.Info("client disconnected", "remote", c.remoteAddr)
	}

	close(c.send)
}

func (h *Hub) sendError(c *Client, reason string) {
	h.push(c, protocol.EventError, protocol.ErrorPayload{Error: reason})
}

// push queues a message for one connection without blocking the hub.
// Delivery is fire-and-forget and at most once: if the connection's
// queue is full the message is dropped so one slow client cannot stall
// unrelated sessions.
func (h *Hub) push(c *Client, t protocol.EventType, payload any) {
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		h.logger.Error("failed to encode message", "type", t, "error", err)
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("send queue full, dropping message", "type", t, "remote", c.remoteAddr)
	}
}
