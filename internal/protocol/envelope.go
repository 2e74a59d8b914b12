package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the closed set of negotiation envelope kinds the relay routes.
type Kind string

const (
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindIceCandidate Kind = "ice-candidate"
	KindReject       Kind = "reject"
)

// Valid reports whether k is one of the routable envelope kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOffer, KindAnswer, KindIceCandidate, KindReject:
		return true
	}
	return false
}

var (
	ErrEmptyPayload = errors.New("empty payload")
	ErrMissingFrom  = errors.New("missing from identity")
	ErrMissingTo    = errors.New("missing to identity")
	ErrBadKind      = errors.New("unknown envelope kind")
)

// Envelope is a routed negotiation message. The relay validates the
// addressing fields and forwards Payload without inspecting it.
type Envelope struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the envelope for the fields the relay needs to route
// it. Payload content is deliberately not examined.
func (e *Envelope) Validate() error {
	if e.From == "" {
		return ErrMissingFrom
	}
	if e.To == "" {
		return ErrMissingTo
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrBadKind, e.Kind)
	}
	if len(e.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// SignalPayload is the negotiation data carried inside an envelope. The
// relay never decodes it; only the two peers do. ClientType rides along
// on offers and answers so peers can agree on a frame codec.
type SignalPayload struct {
	Type         string          `json:"type,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	ICECandidate json.RawMessage `json:"ice_candidate,omitempty"`
	ClientType   string          `json:"client_type,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}
