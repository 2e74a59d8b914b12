package session

import "errors"

// Session-level error conditions. Rejection and user termination close
// the session cleanly; the rest are failures.
var (
	ErrTimeout        = errors.New("negotiation timed out")
	ErrRejected       = errors.New("peer rejected the connection")
	ErrPeerLeft       = errors.New("peer left")
	ErrPeerOffline    = errors.New("peer offline")
	ErrConnectionLost = errors.New("connection lost")
	ErrReplaced       = errors.New("registration superseded by another connection")

	ErrInvalidTarget  = errors.New("invalid target identity")
	ErrSelfConnect    = errors.New("cannot connect to own identity")
	ErrSessionActive  = errors.New("a session is already active")
	ErrNoPendingOffer = errors.New("no pending offer")
	ErrNotConnected   = errors.New("session not connected")
)

// EventKind tags session events surfaced to the presentation layer.
type EventKind int

const (
	// EventIncomingOffer: a remote peer offered a session; the user
	// must accept or reject.
	EventIncomingOffer EventKind = iota

	// EventConnected: direct channel open, chat and transfer available.
	EventConnected

	// EventClosed: session ended. Err is nil for clean termination.
	EventClosed
)

// Event is a session lifecycle notification.
type Event struct {
	Kind EventKind
	From string
	Err  error
}
