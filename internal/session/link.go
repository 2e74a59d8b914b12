package session

import (
	"context"
	"encoding/json"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

// PeerLink is the direct-channel capability the session machine drives.
// The production implementation wraps a WebRTC peer connection; tests
// substitute an in-memory pair.
//
// Callbacks must be installed before negotiation starts. Implementations
// invoke them from their own goroutines.
type PeerLink interface {
	// CreateOffer produces the local session description for the
	// initiator side.
	CreateOffer() (string, error)

	// AcceptOffer applies the remote description and produces the
	// local answer for the responder side.
	AcceptOffer(remoteSDP string) (string, error)

	// AcceptAnswer applies the remote answer on the initiator side.
	AcceptAnswer(remoteSDP string) error

	// AddCandidate applies one remote address-discovery hint. Callers
	// must have set the remote description first.
	AddCandidate(candidate json.RawMessage) error

	OnCandidate(func(candidate json.RawMessage))
	OnOpen(func())
	OnClosed(func(err error))
	OnFrame(func(data []byte))

	// Send transmits one application frame over the open channel.
	Send(data []byte) error

	// WaitSendWindow blocks until the channel's send buffer drains
	// below its low-water mark, bounding how far a sender can run
	// ahead of the transport.
	WaitSendWindow(ctx context.Context) error

	Close() error
}

// LinkFactory allocates a fresh PeerLink for one negotiation attempt.
type LinkFactory func() (PeerLink, error)

// SignalSender is the slice of the signaling client the machine needs.
type SignalSender interface {
	SendEnvelope(from, to string, kind protocol.Kind, payload any) error
	SendAnswer(to string, payload any) error
}
