package session

// Phase is the explicit lifecycle state of a session. All transitions
// happen inside the Machine; illegal ones are rejected rather than
// silently overwriting state.
type Phase int

const (
	// PhaseIdle: no session in progress.
	PhaseIdle Phase = iota

	// PhaseOffering: local user initiated, offer sent, awaiting answer.
	PhaseOffering

	// PhaseOffered: inbound offer held, awaiting local accept/reject.
	// No transport resources are allocated until the user consents.
	PhaseOffered

	// PhaseNegotiating: descriptions exchanged, candidates flowing,
	// direct channel not open yet.
	PhaseNegotiating

	// PhaseConnected: direct channel open and carrying frames.
	PhaseConnected

	// PhaseClosed: terminal. All session resources released.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOffering:
		return "offering"
	case PhaseOffered:
		return "offered"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseConnected:
		return "connected"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role distinguishes which side of the negotiation this process is.
type Role int

const (
	RoleNone Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "none"
	}
}
