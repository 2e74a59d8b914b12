package relay

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

// testHub wires a hub without running its loop; tests invoke handlers
// directly, which is equivalent to one hub event turn each.
func testHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(nil)
}

func attachClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan *protocol.Message, 16), remoteAddr: "test"}
	h.connections[c] = struct{}{}
	return c
}

func registerClient(t *testing.T, h *Hub, c *Client, id string) {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.EventRegister, protocol.RegisterPayload{Identity: id, ClientType: "cli"})
	if err != nil {
		t.Fatal(err)
	}
	h.handleMessage(c, msg)
	ack := mustReceive(t, c)
	if ack.Type != protocol.EventRegisterAck {
		t.Fatalf("register reply = %q, want %q", ack.Type, protocol.EventRegisterAck)
	}
}

func mustReceive(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	default:
		t.Fatal("expected a queued message, queue is empty")
		return nil
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected queued message of type %q", msg.Type)
	default:
	}
}

func forwardEnvelope(t *testing.T, h *Hub, c *Client, env protocol.Envelope) {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.EventForward, env)
	if err != nil {
		t.Fatal(err)
	}
	h.handleMessage(c, msg)
}

func signalPayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(protocol.SignalPayload{Type: "offer", SDP: "v=0", ClientType: "cli"})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHubRegisterAck(t *testing.T) {
	h := testHub(t)
	c := attachClient(h)

	msg, _ := protocol.NewMessage(protocol.EventRegister, protocol.RegisterPayload{Identity: "aaaaaaaaaa"})
	h.handleMessage(c, msg)

	reply := mustReceive(t, c)
	if reply.Type != protocol.EventRegisterAck {
		t.Fatalf("reply type = %q, want register-ack", reply.Type)
	}
	var ack protocol.RegisterAckPayload
	if err := reply.DecodePayload(&ack); err != nil {
		t.Fatal(err)
	}
	if ack.Identity != "aaaaaaaaaa" {
		t.Fatalf("ack identity = %q", ack.Identity)
	}
	if ack.ServerTime.IsZero() {
		t.Fatal("ack carries no server time")
	}
}

func TestHubRegisterInvalidIdentity(t *testing.T) {
	h := testHub(t)
	c := attachClient(h)

	for _, id := range []string{"", "short", "has space!!"} {
		msg, _ := protocol.NewMessage(protocol.EventRegister, protocol.RegisterPayload{Identity: id})
		h.handleMessage(c, msg)

		reply := mustReceive(t, c)
		if reply.Type != protocol.EventError {
			t.Fatalf("identity %q: reply type = %q, want error", id, reply.Type)
		}
	}
	if h.registry.Len() != 0 {
		t.Fatalf("registry has %d entries after invalid registrations", h.registry.Len())
	}
}

func TestHubRegisterEvictsAndNotifies(t *testing.T) {
	h := testHub(t)
	old := attachClient(h)
	registerClient(t, h, old, "aaaaaaaaaa")

	fresh := attachClient(h)
	registerClient(t, h, fresh, "aaaaaaaaaa")

	notice := mustReceive(t, old)
	if notice.Type != protocol.EventSuperseded {
		t.Fatalf("evicted client got %q, want superseded", notice.Type)
	}
	var sup protocol.SupersededPayload
	if err := notice.DecodePayload(&sup); err != nil {
		t.Fatal(err)
	}
	if sup.Identity != "aaaaaaaaaa" {
		t.Fatalf("superseded identity = %q", sup.Identity)
	}

	if got, _ := h.registry.Resolve("aaaaaaaaaa"); got != fresh {
		t.Fatal("identity does not resolve to the newest connection")
	}
}

func TestHubForwardDelivers(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	bob := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")
	registerClient(t, h, bob, "bbbbbbbbbb")

	payload := signalPayload(t)
	forwardEnvelope(t, h, alice, protocol.Envelope{
		From: "aaaaaaaaaa", To: "bbbbbbbbbb", Kind: protocol.KindOffer, Payload: payload,
	})

	delivered := mustReceive(t, bob)
	if delivered.Type != protocol.EventDeliver {
		t.Fatalf("target got %q, want deliver", delivered.Type)
	}
	var d protocol.DeliverPayload
	if err := delivered.DecodePayload(&d); err != nil {
		t.Fatal(err)
	}
	if d.From != "aaaaaaaaaa" || d.Kind != protocol.KindOffer {
		t.Fatalf("deliver = %+v", d)
	}
	if string(d.Payload) != string(payload) {
		t.Fatal("payload was not forwarded byte for byte")
	}
	if d.RelayTime.IsZero() {
		t.Fatal("deliver carries no relay time")
	}
	assertEmpty(t, alice)
}

func TestHubForwardUnknownTarget(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")

	forwardEnvelope(t, h, alice, protocol.Envelope{
		From: "aaaaaaaaaa", To: "nosuchpeer", Kind: protocol.KindOffer, Payload: signalPayload(t),
	})

	reply := mustReceive(t, alice)
	if reply.Type != protocol.EventDeliveryError {
		t.Fatalf("reply type = %q, want delivery-error", reply.Type)
	}
	var de protocol.DeliveryErrorPayload
	if err := reply.DecodePayload(&de); err != nil {
		t.Fatal(err)
	}
	if de.TargetIdentity != "nosuchpeer" {
		t.Fatalf("delivery-error target = %q", de.TargetIdentity)
	}
	// Exactly once.
	assertEmpty(t, alice)
}

func TestHubForwardSpoofedFrom(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	bob := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")
	registerClient(t, h, bob, "bbbbbbbbbb")

	forwardEnvelope(t, h, alice, protocol.Envelope{
		From: "cccccccccc", To: "bbbbbbbbbb", Kind: protocol.KindOffer, Payload: signalPayload(t),
	})

	reply := mustReceive(t, alice)
	if reply.Type != protocol.EventError {
		t.Fatalf("spoofing reply = %q, want error", reply.Type)
	}
	assertEmpty(t, bob)
}

func TestHubForwardUnregisteredSender(t *testing.T) {
	h := testHub(t)
	stranger := attachClient(h)

	forwardEnvelope(t, h, stranger, protocol.Envelope{
		From: "aaaaaaaaaa", To: "bbbbbbbbbb", Kind: protocol.KindOffer, Payload: signalPayload(t),
	})

	reply := mustReceive(t, stranger)
	if reply.Type != protocol.EventError {
		t.Fatalf("reply = %q, want error", reply.Type)
	}
}

func TestHubForwardMalformedEnvelope(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")

	// Missing To and Kind.
	forwardEnvelope(t, h, alice, protocol.Envelope{From: "aaaaaaaaaa", Payload: signalPayload(t)})

	reply := mustReceive(t, alice)
	if reply.Type != protocol.EventError {
		t.Fatalf("reply = %q, want error", reply.Type)
	}
}

func TestHubAcceptForwardStampsFrom(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	bob := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")
	registerClient(t, h, bob, "bbbbbbbbbb")

	msg, _ := protocol.NewMessage(protocol.EventAcceptForward, protocol.AcceptForwardPayload{
		To:      "aaaaaaaaaa",
		Kind:    protocol.KindAnswer,
		Payload: signalPayload(t),
	})
	h.handleMessage(bob, msg)

	delivered := mustReceive(t, alice)
	if delivered.Type != protocol.EventDeliver {
		t.Fatalf("got %q, want deliver", delivered.Type)
	}
	var d protocol.DeliverPayload
	if err := delivered.DecodePayload(&d); err != nil {
		t.Fatal(err)
	}
	if d.From != "bbbbbbbbbb" {
		t.Fatalf("relay stamped From = %q, want the sender's registered identity", d.From)
	}
	if d.Kind != protocol.KindAnswer {
		t.Fatalf("kind = %q, want answer", d.Kind)
	}
}

func TestHubAcceptForwardRejectsNonAnswer(t *testing.T) {
	h := testHub(t)
	bob := attachClient(h)
	registerClient(t, h, bob, "bbbbbbbbbb")

	msg, _ := protocol.NewMessage(protocol.EventAcceptForward, protocol.AcceptForwardPayload{
		To:      "aaaaaaaaaa",
		Kind:    protocol.KindOffer,
		Payload: signalPayload(t),
	})
	h.handleMessage(bob, msg)

	reply := mustReceive(t, bob)
	if reply.Type != protocol.EventError {
		t.Fatalf("reply = %q, want error", reply.Type)
	}
	var e protocol.ErrorPayload
	if err := reply.DecodePayload(&e); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(e.Error, "answer") {
		t.Fatalf("error %q does not name the required kind", e.Error)
	}
}

func TestHubDisconnectBroadcastsPeerLeft(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	bob := attachClient(h)
	carol := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")
	registerClient(t, h, bob, "bbbbbbbbbb")
	registerClient(t, h, carol, "cccccccccc")

	h.handleDisconnect(alice)

	for _, other := range []*Client{bob, carol} {
		notice := mustReceive(t, other)
		if notice.Type != protocol.EventPeerLeft {
			t.Fatalf("got %q, want peer-left", notice.Type)
		}
		var pl protocol.PeerLeftPayload
		if err := notice.DecodePayload(&pl); err != nil {
			t.Fatal(err)
		}
		if pl.Identity != "aaaaaaaaaa" {
			t.Fatalf("peer-left identity = %q", pl.Identity)
		}
	}

	if _, ok := h.registry.Resolve("aaaaaaaaaa"); ok {
		t.Fatal("identity still resolves after disconnect")
	}

	// The identity is free for immediate reuse.
	again := attachClient(h)
	registerClient(t, h, again, "aaaaaaaaaa")
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	h := testHub(t)
	alice := attachClient(h)
	bob := attachClient(h)
	registerClient(t, h, alice, "aaaaaaaaaa")
	registerClient(t, h, bob, "bbbbbbbbbb")

	h.handleDisconnect(alice)
	mustReceive(t, bob) // peer-left

	// A second detach for the same client must not panic or notify again.
	h.handleDisconnect(alice)
	assertEmpty(t, bob)
}

func TestHubUnknownMessageType(t *testing.T) {
	h := testHub(t)
	c := attachClient(h)

	h.handleMessage(c, &protocol.Message{Type: "join-room"})

	reply := mustReceive(t, c)
	if reply.Type != protocol.EventError {
		t.Fatalf("reply = %q, want error", reply.Type)
	}
}

func TestHubSendQueueOverflowDrops(t *testing.T) {
	h := testHub(t)
	c := &Client{hub: h, send: make(chan *protocol.Message, 1), remoteAddr: "test"}
	h.connections[c] = struct{}{}

	h.push(c, protocol.EventError, protocol.ErrorPayload{Error: "first"})
	// Queue is full now; this must not block the hub turn.
	h.push(c, protocol.EventError, protocol.ErrorPayload{Error: "second"})

	first := mustReceive(t, c)
	var e protocol.ErrorPayload
	if err := first.DecodePayload(&e); err != nil {
		t.Fatal(err)
	}
	if e.Error != "first" {
		t.Fatalf("kept message = %q, want the first", e.Error)
	}
	assertEmpty(t, c)
}
