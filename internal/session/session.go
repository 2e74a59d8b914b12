// Package session implements the client-side negotiation lifecycle: one
// explicit state machine per process, driven by local user intent and by
// envelopes delivered through the signaling relay, ending in an open
// direct channel between the two peers.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Jaypalsingh1/sovereignshare/internal/identity"
	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

// DefaultNegotiationTimeout bounds how long a session may sit between
// sending/accepting an offer and the direct channel opening.
const DefaultNegotiationTimeout = 30 * time.Second

const eventQueueSize = 16
const frameQueueSize = 64

// Config wires a Machine to its collaborators.
type Config struct {
	// Local is this process's registered identity.
	Local string

	// ClientType is advertised inside offers and answers so peers can
	// negotiate a frame codec.
	ClientType string

	Signals SignalSender
	NewLink LinkFactory

	// Timeout overrides DefaultNegotiationTimeout when positive.
	Timeout time.Duration

	Logger *slog.Logger
}

// Machine is the per-client session state machine. Exactly one exists
// per process; a second inbound offer while a session is active is
// rejected as busy without disturbing the active session.
//
// The host runtime schedules link callbacks and relay messages on real
// goroutines, so the machine guards its state with a mutex; every
// transition runs to completion under it.
type Machine struct {
	mu sync.Mutex

	local      string
	clientType string
	signals    SignalSender
	newLink    LinkFactory
	timeoutDur time.Duration
	logger     *slog.Logger

	phase  Phase
	role   Role
	remote string
	link   PeerLink

	// pendingOffer holds an inbound offer between Offered and the
	// user's accept/reject decision. No link exists yet.
	pendingOffer *protocol.SignalPayload

	// pendingHints buffers remote candidates that arrive before the
	// remote description is set. Flushed in arrival order exactly
	// once, then never reused for the life of the session.
	pendingHints []json.RawMessage
	remoteDescSet bool

	peerClientType string

	// linkDone unblocks a frame push stuck on a full queue when the
	// link is released.
	linkDone chan struct{}

	timer *time.Timer

	events chan Event
	frames chan []byte
}

func New(cfg Config) *Machine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		local:      cfg.Local,
		clientType: cfg.ClientType,
		signals:    cfg.Signals,
		newLink:    cfg.NewLink,
		timeoutDur: timeout,
		logger:     logger,
		phase:      PhaseIdle,
		events:     make(chan Event, eventQueueSize),
		frames:     make(chan []byte, frameQueueSize),
	}
}

// Events is the stream of lifecycle notifications for the presentation
// layer.
func (m *Machine) Events() <-chan Event { return m.events }

// Frames is the stream of raw application frames received over the
// direct channel while Connected.
func (m *Machine) Frames() <-chan []byte { return m.frames }

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) Remote() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote
}

func (m *Machine) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// PeerClientType reports the client type the remote peer advertised
// during negotiation, used for frame codec selection.
func (m *Machine) PeerClientType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerClientType
}

// Connect starts an outbound session: Idle -> Offering. It allocates
// the direct-channel object, produces a session description and sends
// it to target as an Offer through the relay.
func (m *Machine) Connect(target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return ErrSessionActive
	}
	if !identity.Valid(target) {
		return ErrInvalidTarget
	}
	if target == m.local {
		return ErrSelfConnect
	}

	link, err := m.newLink()
	if err != nil {
		return err
	}
	m.attachLink(link)
	m.remote = target
	m.role = RoleInitiator

	offerSDP, err := link.CreateOffer()
	if err != nil {
		m.releaseLinkLocked()
		m.remote = ""
		m.role = RoleNone
		return err
	}

	if err := m.signals.SendEnvelope(m.local, target, protocol.KindOffer, protocol.SignalPayload{
		Type:       "offer",
		SDP:        offerSDP,
		ClientType: m.clientType,
	}); err != nil {
		m.releaseLinkLocked()
		m.remote = ""
		m.role = RoleNone
		return err
	}

	m.phase = PhaseOffering
	m.startTimerLocked()
	m.logger.Info("session offering", "remote", target)
	return nil
}

// Accept consents to a pending inbound offer: Offered -> Negotiating.
// Only now is the direct-channel object allocated; the remote
// description is applied, buffered candidates are drained in order, and
// the answer travels back on the dedicated accept path.
func (m *Machine) Accept() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseOffered || m.pendingOffer == nil {
		return ErrNoPendingOffer
	}
	return m.acceptLocked()
}

func (m *Machine) acceptLocked() error {
	offer := m.pendingOffer

	link, err := m.newLink()
	if err != nil {
		m.closeLocked(err)
		return err
	}
	m.attachLink(link)

	answerSDP, err := link.AcceptOffer(offer.SDP)
	if err != nil {
		m.closeLocked(err)
		return err
	}
	m.remoteDescSet = true
	m.flushHintsLocked()

	if err := m.signals.SendAnswer(m.remote, protocol.SignalPayload{
		Type:       "answer",
		SDP:        answerSDP,
		ClientType: m.clientType,
	}); err != nil {
		m.closeLocked(err)
		return err
	}

	m.pendingOffer = nil
	m.phase = PhaseNegotiating
	m.role = RoleResponder
	m.startTimerLocked()
	m.logger.Info("session negotiating", "remote", m.remote, "role", m.role)
	return nil
}

// Reject declines a pending inbound offer: Offered -> Closed. The offer
// is discarded without ever opening transport resources.
func (m *Machine) Reject() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseOffered || m.pendingOffer == nil {
		return ErrNoPendingOffer
	}

	m.sendReject(m.remote, "declined")
	m.logger.Info("session rejected by local user", "remote", m.remote)
	m.closeLocked(nil)
	return nil
}

// Close terminates the session. Idempotent: closing an already-closed
// session is a no-op, not an error. A nil cause is a clean local
// termination.
func (m *Machine) Close(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseClosed {
		return
	}
	m.closeLocked(cause)
}

// Reset returns a Closed machine to Idle so a new session can start.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseClosed {
		return
	}
	m.phase = PhaseIdle
	m.role = RoleNone
	m.remote = ""
	m.peerClientType = ""
	m.remoteDescSet = false
}

// Send transmits one application frame over the connected channel.
func (m *Machine) Send(data []byte) error {
	m.mu.Lock()
	link, phase := m.link, m.phase
	m.mu.Unlock()

	if phase != PhaseConnected || link == nil {
		return ErrNotConnected
	}
	return link.Send(data)
}

// WaitSendWindow blocks until the channel's send buffer has drained
// below its low-water mark.
func (m *Machine) WaitSendWindow(ctx context.Context) error {
	m.mu.Lock()
	link, phase := m.link, m.phase
	m.mu.Unlock()

	if phase != PhaseConnected || link == nil {
		return ErrNotConnected
	}
	return link.WaitSendWindow(ctx)
}

// HandleDeliver processes one envelope delivered by the relay.
func (m *Machine) HandleDeliver(d protocol.DeliverPayload) {
	var sig protocol.SignalPayload
	if err := json.Unmarshal(d.Payload, &sig); err != nil {
		m.logger.Warn("undecodable signal payload", "from", d.From, "kind", d.Kind)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch d.Kind {
	case protocol.KindOffer:
		m.handleOfferLocked(d.From, &sig)
	case protocol.KindAnswer:
		m.handleAnswerLocked(d.From, &sig)
	case protocol.KindIceCandidate:
		m.handleCandidateLocked(d.From, &sig)
	case protocol.KindReject:
		m.handleRejectLocked(d.From, &sig)
	}
}

func (m *Machine) handleOfferLocked(from string, sig *protocol.SignalPayload) {
	switch m.phase {
	case PhaseIdle:
		m.remote = from
		m.peerClientType = sig.ClientType
		m.pendingOffer = sig
		m.phase = PhaseOffered
		m.logger.Info("inbound offer", "from", from)
		m.emit(Event{Kind: EventIncomingOffer, From: from})

	case PhaseOffering:
		if from == m.remote {
			m.resolveGlareLocked(sig)
			return
		}
		m.sendReject(from, "busy")

	default:
		// One active session per client. Reject immediately without
		// disturbing it.
		m.logger.Info("rejecting offer while busy", "from", from, "phase", m.phase)
		m.sendReject(from, "busy")
	}
}

// resolveGlareLocked arbitrates simultaneous mutual offers: the peer
// with the lexicographically smaller identity abandons its own offer
// and answers the remote one. Both users already consented to this
// session, so no second accept prompt is shown.
func (m *Machine) resolveGlareLocked(sig *protocol.SignalPayload) {
	if m.local < m.remote {
		m.logger.Info("glare detected, yielding to remote offer", "remote", m.remote)
		m.stopTimerLocked()
		m.releaseLinkLocked()
		m.remoteDescSet = false
		m.peerClientType = sig.ClientType
		m.pendingOffer = sig
		m.phase = PhaseOffered
		if err := m.acceptLocked(); err != nil {
			m.logger.Warn("glare accept failed", "error", err)
		}
		return
	}
	// The remote side yields; its offer is dropped and our own
	// outstanding offer will be answered.
	m.logger.Info("glare detected, keeping local offer", "remote", m.remote)
}

func (m *Machine) handleAnswerLocked(from string, sig *protocol.SignalPayload) {
	if from != m.remote || m.phase != PhaseOffering || m.link == nil {
		m.logger.Warn("dropping unexpected answer", "from", from, "phase", m.phase)
		return
	}

	if err := m.link.AcceptAnswer(sig.SDP); err != nil {
		m.closeLocked(err)
		return
	}
	m.peerClientType = sig.ClientType
	m.remoteDescSet = true
	m.flushHintsLocked()
	m.phase = PhaseNegotiating
	m.logger.Info("answer applied", "remote", m.remote)
}

func (m *Machine) handleCandidateLocked(from string, sig *protocol.SignalPayload) {
	if from != m.remote || len(sig.ICECandidate) == 0 {
		return
	}
	switch m.phase {
	case PhaseOffering, PhaseOffered, PhaseNegotiating:
	default:
		return
	}

	if !m.remoteDescSet {
		// The remote description is not known yet; hints must not be
		// dropped, so buffer them in arrival order.
		m.pendingHints = append(m.pendingHints, sig.ICECandidate)
		return
	}
	if m.link == nil {
		return
	}
	if err := m.link.AddCandidate(sig.ICECandidate); err != nil {
		m.logger.Warn("failed to apply candidate", "error", err)
	}
}

func (m *Machine) handleRejectLocked(from string, sig *protocol.SignalPayload) {
	if from != m.remote {
		return
	}
	switch m.phase {
	case PhaseOffering, PhaseNegotiating:
		m.logger.Info("offer rejected by peer", "remote", from, "reason", sig.Reason)
		m.closeLocked(ErrRejected)
	}
}

// HandleDeliveryError processes an undeliverable-envelope report. An
// offer to an unregistered identity closes the session with "peer
// offline" instead of hanging until the timeout.
func (m *Machine) HandleDeliveryError(de protocol.DeliveryErrorPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if de.TargetIdentity != m.remote {
		return
	}
	switch m.phase {
	case PhaseOffering, PhaseNegotiating:
		m.logger.Warn("delivery failed", "target", de.TargetIdentity, "reason", de.Reason)
		m.closeLocked(ErrPeerOffline)
	}
}

// HandlePeerLeft processes the relay's best-effort disconnect notice.
func (m *Machine) HandlePeerLeft(pl protocol.PeerLeftPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pl.Identity != m.remote || m.phase == PhaseIdle || m.phase == PhaseClosed {
		return
	}
	m.logger.Info("peer left", "remote", pl.Identity)
	m.closeLocked(ErrPeerLeft)
}

// HandleSuperseded processes the notice that our identity was
// registered from another connection. The session cannot continue to be
// signaled, so it is surfaced as replaced rather than silently dropped.
func (m *Machine) HandleSuperseded(protocol.SupersededPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseClosed {
		return
	}
	m.closeLocked(ErrReplaced)
}

// attachLink installs callbacks on a freshly allocated link. Callbacks
// check that the link is still current so a released link cannot touch
// a newer session.
func (m *Machine) attachLink(link PeerLink) {
	m.link = link
	done := make(chan struct{})
	m.linkDone = done

	link.OnCandidate(func(candidate json.RawMessage) {
		m.mu.Lock()
		current := m.link == link && m.remote != ""
		remote := m.remote
		m.mu.Unlock()
		if !current {
			return
		}
		if err := m.signals.SendEnvelope(m.local, remote, protocol.KindIceCandidate, protocol.SignalPayload{
			ICECandidate: candidate,
		}); err != nil {
			m.logger.Warn("failed to send candidate", "error", err)
		}
	})

	link.OnOpen(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.link != link {
			return
		}
		switch m.phase {
		case PhaseOffering, PhaseNegotiating:
			m.stopTimerLocked()
			m.phase = PhaseConnected
			m.logger.Info("session connected", "remote", m.remote, "role", m.role)
			m.emit(Event{Kind: EventConnected, From: m.remote})
		}
	})

	link.OnClosed(func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.link != link || m.phase == PhaseClosed {
			return
		}
		if err == nil {
			err = ErrConnectionLost
		}
		m.closeLocked(err)
	})

	// The direct channel is ordered and reliable end to end, so a full
	// queue must never drop frames. The push blocks instead; that stalls
	// the link's read loop and lets channel flow control hold back the
	// sender until the consumer catches up. Releasing the link unblocks
	// any stuck push.
	link.OnFrame(func(data []byte) {
		select {
		case m.frames <- data:
		case <-done:
		}
	})
}

// flushHintsLocked applies buffered candidates in arrival order exactly
// once. The queue is cleared permanently; later candidates are applied
// directly because the remote description is now set.
func (m *Machine) flushHintsLocked() {
	hints := m.pendingHints
	m.pendingHints = nil
	for _, hint := range hints {
		if err := m.link.AddCandidate(hint); err != nil {
			m.logger.Warn("failed to apply buffered candidate", "error", err)
		}
	}
}

func (m *Machine) startTimerLocked() {
	m.stopTimerLocked()
	m.timer = time.AfterFunc(m.timeoutDur, m.onTimeout)
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// onTimeout fires at most once per negotiation: the timer is cancelled
// on every transition into Connected or Closed, and a Closed session
// ignores a late firing.
func (m *Machine) onTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseOffering, PhaseOffered, PhaseNegotiating:
		m.logger.Warn("negotiation timed out", "remote", m.remote, "phase", m.phase)
		m.closeLocked(ErrTimeout)
	}
}

func (m *Machine) sendReject(to, reason string) {
	if err := m.signals.SendEnvelope(m.local, to, protocol.KindReject, protocol.SignalPayload{
		Reason: reason,
	}); err != nil {
		m.logger.Warn("failed to send reject", "to", to, "error", err)
	}
}

// closeLocked is the single path into Closed. It releases the link,
// clears every piece of session state and emits exactly one Closed
// event.
func (m *Machine) closeLocked(cause error) {
	if m.phase == PhaseClosed {
		return
	}

	m.stopTimerLocked()
	m.releaseLinkLocked()

	remote := m.remote
	m.phase = PhaseClosed
	m.pendingOffer = nil
	m.pendingHints = nil
	m.remoteDescSet = false

	if cause != nil {
		m.logger.Info("session closed", "remote", remote, "cause", cause)
	} else {
		m.logger.Info("session closed", "remote", remote)
	}
	m.emit(Event{Kind: EventClosed, From: remote, Err: cause})
}

func (m *Machine) releaseLinkLocked() {
	if m.link != nil {
		m.link.Close()
		m.link = nil
	}
	if m.linkDone != nil {
		close(m.linkDone)
		m.linkDone = nil
	}
}

func (m *Machine) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("event queue full, dropping event", "kind", ev.Kind)
	}
}
