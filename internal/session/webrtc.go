package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/Jaypalsingh1/sovereignshare/internal/config"
)

const (
	// channelLabel names the single data channel a session uses.
	channelLabel = "session"

	// Backpressure thresholds for the data channel's internal send
	// buffer. The sender blocks above the high-water mark and resumes
	// once the buffer drains below the low-water mark.
	highWaterMark = 2 * 1024 * 1024
	lowWaterMark  = 512 * 1024

	drainTimeout = 60 * time.Second
)

var errDrainTimeout = errors.New("timed out waiting for send buffer to drain")

// webrtcLink implements PeerLink over a pion peer connection with one
// ordered, reliable data channel.
type webrtcLink struct {
	pc *pion.PeerConnection

	mu sync.Mutex
	dc *pion.DataChannel

	onCandidate func(json.RawMessage)
	onOpen      func()
	onClosed    func(error)
	onFrame     func([]byte)

	drained chan struct{}
}

// NewLinkFactory returns a LinkFactory producing WebRTC links with the
// configured ICE servers.
func NewLinkFactory(cfg *config.Config) LinkFactory {
	return func() (PeerLink, error) {
		return newWebRTCLink(cfg)
	}
}

func newWebRTCLink(cfg *config.Config) (*webrtcLink, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.STUNServers()}}

	if turnServers := cfg.TURNServers(); turnServers != nil {
		username, password := cfg.TURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	l := &webrtcLink{
		pc:      pc,
		drained: make(chan struct{}, 1),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if cb := l.candidateCallback(); cb != nil {
			cb(raw)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		switch state {
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed, pion.PeerConnectionStateDisconnected:
			if cb := l.closedCallback(); cb != nil {
				cb(nil)
			}
		}
	})

	// The responder side receives the channel the initiator created.
	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() == channelLabel {
			l.adoptChannel(dc)
		}
	})

	return l, nil
}

func (l *webrtcLink) CreateOffer() (string, error) {
	ordered := true
	dc, err := l.pc.CreateDataChannel(channelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return "", err
	}
	l.adoptChannel(dc)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err = l.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}

	// Trickle ICE: candidates follow through OnCandidate, no need to
	// wait for gathering here.
	return l.pc.LocalDescription().SDP, nil
}

func (l *webrtcLink) AcceptOffer(remoteSDP string) (string, error) {
	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: remoteSDP}
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err = l.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}

	return l.pc.LocalDescription().SDP, nil
}

func (l *webrtcLink) AcceptAnswer(remoteSDP string) error {
	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: remoteSDP}
	return l.pc.SetRemoteDescription(answer)
}

func (l *webrtcLink) AddCandidate(candidate json.RawMessage) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &ice); err != nil {
		return err
	}
	return l.pc.AddICECandidate(ice)
}

// adoptChannel installs handlers on the session data channel, whichever
// side created it.
func (l *webrtcLink) adoptChannel(dc *pion.DataChannel) {
	l.mu.Lock()
	l.dc = dc
	l.mu.Unlock()

	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case l.drained <- struct{}{}:
		default:
		}
	})

	dc.OnOpen(func() {
		if cb := l.openCallback(); cb != nil {
			cb()
		}
	})

	dc.OnClose(func() {
		if cb := l.closedCallback(); cb != nil {
			cb(nil)
		}
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if cb := l.frameCallback(); cb != nil {
			cb(msg.Data)
		}
	})
}

func (l *webrtcLink) Send(data []byte) error {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrNotConnected
	}
	return dc.Send(data)
}

func (l *webrtcLink) WaitSendWindow(ctx context.Context) error {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc == nil {
		return ErrNotConnected
	}
	if dc.BufferedAmount() < highWaterMark {
		return nil
	}

	select {
	case <-l.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(drainTimeout):
		return errDrainTimeout
	}
}

func (l *webrtcLink) OnCandidate(cb func(json.RawMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCandidate = cb
}

func (l *webrtcLink) OnOpen(cb func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onOpen = cb
}

func (l *webrtcLink) OnClosed(cb func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onClosed = cb
}

func (l *webrtcLink) OnFrame(cb func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFrame = cb
}

func (l *webrtcLink) candidateCallback() func(json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onCandidate
}

func (l *webrtcLink) openCallback() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onOpen
}

func (l *webrtcLink) closedCallback() func(error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onClosed
}

func (l *webrtcLink) frameCallback() func([]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onFrame
}

func (l *webrtcLink) Close() error {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	return l.pc.Close()
}
