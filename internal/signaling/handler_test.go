package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Jaypalsingh1/sovereignshare/internal/protocol"
)

func feed(t *testing.T, client *Client, eventType protocol.EventType, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(eventType, payload)
	if err != nil {
		t.Fatalf("building %s message: %v", eventType, err)
	}
	client.incoming <- msg
}

func TestHandlerRoutesMessages(t *testing.T) {
	client := NewClient("ws://unused")
	h := NewHandler(client)
	go h.Start()

	feed(t, client, protocol.EventRegisterAck, protocol.RegisterAckPayload{Identity: "aaaaaaaaaa"})
	feed(t, client, protocol.EventDeliver, protocol.DeliverPayload{
		From:    "bbbbbbbbbb",
		Kind:    protocol.KindOffer,
		Payload: json.RawMessage(`{}`),
	})
	feed(t, client, protocol.EventError, protocol.ErrorPayload{Error: "bad envelope"})

	select {
	case ack := <-h.RegisterAck:
		if ack.Identity != "aaaaaaaaaa" {
			t.Fatalf("ack identity = %q", ack.Identity)
		}
	case <-time.After(time.Second):
		t.Fatal("register ack was not routed")
	}

	select {
	case d := <-h.Deliver:
		if d.From != "bbbbbbbbbb" || d.Kind != protocol.KindOffer {
			t.Fatalf("deliver = %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("deliver was not routed")
	}

	select {
	case e := <-h.Err:
		if e != "bad envelope" {
			t.Fatalf("error = %q", e)
		}
	case <-time.After(time.Second):
		t.Fatal("error was not routed")
	}

	close(client.incoming)
	select {
	case <-h.Disconnected:
	case <-time.After(time.Second):
		t.Fatal("Disconnected did not close when the stream ended")
	}
}

func TestHandlerCloseWaitsForStart(t *testing.T) {
	client := NewClient("ws://unused")
	h := NewHandler(client)
	go h.Start()

	feed(t, client, protocol.EventDeliver, protocol.DeliverPayload{
		From:    "aaaaaaaaaa",
		Kind:    protocol.KindOffer,
		Payload: json.RawMessage(`{}`),
	})
	select {
	case <-h.Deliver:
	case <-time.After(time.Second):
		t.Fatal("deliver was not routed")
	}

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	// Start is still consuming; Close must hold off until it returns,
	// or a late route would hit a closed channel.
	select {
	case <-closed:
		t.Fatal("Close returned while the incoming stream was still open")
	case <-time.After(20 * time.Millisecond):
	}

	feed(t, client, protocol.EventDeliver, protocol.DeliverPayload{
		From:    "bbbbbbbbbb",
		Kind:    protocol.KindOffer,
		Payload: json.RawMessage(`{}`),
	})
	select {
	case d := <-h.Deliver:
		if d.From != "bbbbbbbbbb" {
			t.Fatalf("deliver = %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("deliver during pending Close was not routed")
	}

	close(client.incoming)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the stream ended")
	}

	if _, ok := <-h.Deliver; ok {
		t.Fatal("Deliver still open after Close")
	}

	// A second Close is a no-op.
	h.Close()
}
