package gateway

import (
	"testing"

	"SGateway/tools/errs"

	"github.com/pkg/errors"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"kind":"send-message","target":"room:abc","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Kind != KindSendMessage || env.Target != "room:abc" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`not json`)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseEnvelope([]byte(`{"target":"room:abc"}`)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("missing kind must be rejected, got %v", err)
	}
}

func TestRoomKindConventions(t *testing.T) {
	cases := []struct {
		room string
		kind RoomKind
	}{
		{"user:u1", RoomPersonal},
		{"room:abc", RoomChat},
		{"stream:s9", RoomStream},
		{"game:g7", RoomGame},
		{"lobby", RoomChat},
	}
	for _, c := range cases {
		if got := RoomKindOf(c.room); got != c.kind {
			t.Errorf("RoomKindOf(%q)=%v, want %v", c.room, got, c.kind)
		}
	}
}

func TestTargetResolutionConventions(t *testing.T) {
	if IsRoomTarget("u1") {
		t.Fatalf("bare id addresses a user")
	}
	if IsRoomTarget("user:u1") {
		t.Fatalf("user:<id> addresses the personal delivery path, not a joinable room")
	}
	if !IsRoomTarget("room:abc") || !IsRoomTarget("stream:s1") {
		t.Fatalf("prefixed ids address rooms")
	}
	if TargetUser("user:u1") != "u1" || TargetUser("u1") != "u1" {
		t.Fatalf("TargetUser must normalize both forms")
	}
}

func TestBuildErrorCarriesCode(t *testing.T) {
	env := BuildError(errs.ErrRegistryInvariant.WrapMsg("cannot leave personal room"))
	if env.Kind != KindError || env.Sender != SystemSender {
		t.Fatalf("unexpected error envelope: %+v", env)
	}
	if env.Payload["code"] != errs.CodeRegistryInvariant {
		t.Fatalf("expected registry invariant code, got %v", env.Payload["code"])
	}
}
