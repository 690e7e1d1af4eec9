package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SGateway/service/notify"
	"SGateway/service/storage"
	"SGateway/service/verify"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, credential string) (verify.Identity, error) {
	return verify.Identity{UserID: credential, DisplayName: credential}, nil
}

func newTestServer() *Server {
	return NewServer(Conf{
		NodeID:        "gw-test",
		SendQueueSize: 8,
		FanoutWorkers: 1,
		FanoutQueue:   64,
	}, stubVerifier{}, storage.NopPresence{}, notify.NopEmitter{})
}

// drain pulls everything currently queued for the connection, decoded.
func drain(t *testing.T, c *Conn) []*Envelope {
	t.Helper()
	var out []*Envelope
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case data := <-c.Drain():
			env := &Envelope{}
			if err := json.Unmarshal(data, env); err != nil {
				t.Fatalf("bad outbound frame: %v", err)
			}
			out = append(out, env)
		case <-deadline:
			return out
		default:
			if len(out) > 0 {
				return out
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func ofKind(envs []*Envelope, k Kind) []*Envelope {
	var out []*Envelope
	for _, e := range envs {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func TestEndToEndRoomChat(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, err := s.Admit("c1", verify.Identity{UserID: "u1", DisplayName: "U One"}, nil)
	if err != nil {
		t.Fatalf("admit u1: %v", err)
	}
	u2, err := s.Admit("c2", verify.Identity{UserID: "u2", DisplayName: "U Two"}, nil)
	if err != nil {
		t.Fatalf("admit u2: %v", err)
	}

	s.HandleEnvelope(&Envelope{Kind: KindJoinRoom, Target: "room:abc"}, u1)
	s.HandleEnvelope(&Envelope{Kind: KindJoinRoom, Target: "room:abc"}, u2)

	s.HandleEnvelope(&Envelope{
		Kind:    KindSendMessage,
		Target:  "room:abc",
		Payload: map[string]any{"text": "hi"},
	}, u1)

	got2 := ofKind(drain(t, u2), KindNewMessage)
	if len(got2) != 1 {
		t.Fatalf("u2 expected exactly one new-message, got %d", len(got2))
	}
	if got2[0].Sender != "u1" {
		t.Fatalf("new-message sender must be the authenticated identity, got %q", got2[0].Sender)
	}
	if got2[0].Payload["text"] != "hi" {
		t.Fatalf("payload mismatch: %v", got2[0].Payload)
	}
	if got2[0].Ts == 0 {
		t.Fatalf("timestamp must be gateway-stamped")
	}

	got1 := drain(t, u1)
	if n := len(ofKind(got1, KindNewMessage)); n != 0 {
		t.Fatalf("sender must not see its own new-message, got %d", n)
	}
	if n := len(ofKind(got1, KindMessageSent)); n != 1 {
		t.Fatalf("sender expected exactly one message-sent, got %d", n)
	}
}

func TestSenderIdentityCannotBeSpoofed(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)
	u2, _ := s.Admit("c2", verify.Identity{UserID: "u2"}, nil)

	s.HandleEnvelope(&Envelope{
		Kind:    KindSendMessage,
		Sender:  "admin", // client-asserted, must be discarded
		Target:  "u2",
		Payload: map[string]any{"text": "hey"},
	}, u1)

	got := ofKind(drain(t, u2), KindNewMessage)
	if len(got) != 1 || got[0].Sender != "u1" {
		t.Fatalf("expected one new-message stamped sender=u1, got %+v", got)
	}
}

func TestFanoutIsolation(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	slow, _ := s.Admit("c-slow", verify.Identity{UserID: "slow"}, nil)
	healthy, _ := s.Admit("c-ok", verify.Identity{UserID: "ok"}, nil)
	sender, _ := s.Admit("c-send", verify.Identity{UserID: "sender"}, nil)

	_ = s.rooms.Join(slow.ID, "room:r")
	_ = s.rooms.Join(healthy.ID, "room:r")

	// jam the slow connection's queue
	for slow.TrySend([]byte("x")) {
	}

	s.HandleEnvelope(&Envelope{
		Kind:    KindSendMessage,
		Target:  "room:r",
		Payload: map[string]any{"text": "still coming through"},
	}, sender)

	got := ofKind(drain(t, healthy), KindNewMessage)
	if len(got) != 1 {
		t.Fatalf("healthy member must receive the event despite the slow one, got %d", len(got))
	}
}

func TestPerDestinationOrdering(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u2, _ := s.Admit("c2", verify.Identity{UserID: "u2"}, nil)
	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)

	for i := 1; i <= 3; i++ {
		s.HandleEnvelope(&Envelope{
			Kind:    KindSendMessage,
			Target:  "u2",
			Payload: map[string]any{"seq": i},
		}, u1)
	}

	got := ofKind(drain(t, u2), KindNewMessage)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, env := range got {
		if int(env.Payload["seq"].(float64)) != i+1 {
			t.Fatalf("enqueue order must be preserved per destination, got %v at %d", env.Payload["seq"], i)
		}
	}
}

func TestUnknownKindAnsweredWithError(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)
	s.HandleEnvelope(&Envelope{Kind: Kind("no-such-kind")}, u1)

	got := ofKind(drain(t, u1), KindError)
	if len(got) != 1 {
		t.Fatalf("sender expected exactly one error event, got %d", len(got))
	}
	if got[0].Payload["reason"] == "" {
		t.Fatalf("error event must carry a reason")
	}
}

func TestRoomGarbageCollectedAfterDisconnect(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)
	s.HandleEnvelope(&Envelope{Kind: KindJoinRoom, Target: "room:abc"}, u1)
	if got := len(s.rooms.MembersOf("room:abc")); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}

	s.Disconnect("c1")
	if got := s.rooms.MembersOf("room:abc"); len(got) != 0 {
		t.Fatalf("room must be garbage-collected after the last member leaves, got %v", got)
	}
}

func TestTypingSignals(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)
	u2a, _ := s.Admit("c2a", verify.Identity{UserID: "u2"}, nil)
	u2b, _ := s.Admit("c2b", verify.Identity{UserID: "u2"}, nil)

	s.HandleEnvelope(&Envelope{Kind: KindTypingStart, Payload: map[string]any{"user_id": "u2"}}, u1)

	for _, c := range []*Conn{u2a, u2b} {
		got := ofKind(drain(t, c), KindUserTyping)
		if len(got) != 1 {
			t.Fatalf("every device of the target must see user-typing, got %d", len(got))
		}
		if got[0].Payload["user_id"] != "u1" {
			t.Fatalf("user-typing must name the typist, got %v", got[0].Payload)
		}
	}
}

func TestGameInviteAndMove(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	u1, _ := s.Admit("c1", verify.Identity{UserID: "u1"}, nil)
	u2, _ := s.Admit("c2", verify.Identity{UserID: "u2"}, nil)

	s.HandleEnvelope(&Envelope{Kind: KindGameInvite, Target: "u2", Payload: map[string]any{"game": "chess"}}, u1)
	got := ofKind(drain(t, u2), KindGameInvitation)
	if len(got) != 1 || got[0].Payload["game"] != "chess" {
		t.Fatalf("invitee expected one game-invitation, got %+v", got)
	}

	s.HandleEnvelope(&Envelope{Kind: KindJoinRoom, Target: "game:g1"}, u1)
	s.HandleEnvelope(&Envelope{Kind: KindJoinRoom, Target: "game:g1"}, u2)
	s.HandleEnvelope(&Envelope{Kind: KindGameMove, Target: "game:g1", Payload: map[string]any{"move": "e4"}}, u1)

	moves := ofKind(drain(t, u2), KindGameMoveMade)
	if len(moves) != 1 || moves[0].Payload["move"] != "e4" {
		t.Fatalf("room peer expected one game-move-made, got %+v", moves)
	}
	if n := len(ofKind(drain(t, u1), KindGameMoveMade)); n != 0 {
		t.Fatalf("mover must not receive its own move, got %d", n)
	}
}
