package protocol

import (
	"encoding/json"
	"time"
)

// EventType identifies a signaling message on the relay wire.
type EventType string

// Client to relay.
const (
	EventRegister      EventType = "register"
	EventForward       EventType = "forward"
	EventAcceptForward EventType = "accept-forward"
)

// Relay to client.
const (
	EventRegisterAck   EventType = "register-ack"
	EventDeliver       EventType = "deliver"
	EventDeliveryError EventType = "delivery-error"
	EventPeerLeft      EventType = "peer-left"
	EventSuperseded    EventType = "superseded"
	EventError         EventType = "error"
)

// Message is the envelope for all WebSocket traffic between a client and
// the relay. Payload is decoded according to Type.
type Message struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a Message with the payload marshaled in place.
func NewMessage(t EventType, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Payload, v)
}

// RegisterPayload binds the sending connection to an identity. ClientType
// is advertised so peers can negotiate a frame codec later.
type RegisterPayload struct {
	Identity   string `json:"identity"`
	ClientType string `json:"client_type,omitempty"`
}

// RegisterAckPayload confirms a registration round-trip.
type RegisterAckPayload struct {
	Identity   string    `json:"identity"`
	ServerTime time.Time `json:"server_time"`
}

// AcceptForwardPayload carries an Answer back to the peer that offered.
// The relay fills in the sender identity itself, so spoofing the origin
// is not possible on this path.
type AcceptForwardPayload struct {
	To      string          `json:"to"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DeliverPayload is a forwarded envelope as seen by the recipient.
type DeliverPayload struct {
	From      string          `json:"from"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	RelayTime time.Time       `json:"relay_time"`
}

// DeliveryErrorPayload reports an undeliverable envelope to its sender.
type DeliveryErrorPayload struct {
	TargetIdentity string `json:"target_identity"`
	Reason         string `json:"reason"`
}

// PeerLeftPayload is the best-effort disconnect notice.
type PeerLeftPayload struct {
	Identity string `json:"identity"`
	Reason   string `json:"reason,omitempty"`
}

// SupersededPayload tells an evicted connection that its identity was
// re-registered elsewhere.
type SupersededPayload struct {
	Identity string `json:"identity"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorPayload carries a validation error back to the sender.
type ErrorPayload struct {
	Error string `json:"error"`
}
