package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"SGateway/tools/errs"
)

// Kind tags every envelope crossing the wire, both directions.
type Kind string

// Inbound (client -> gateway).
const (
	KindAuth            Kind = "auth"
	KindJoinRoom        Kind = "join-room"
	KindLeaveRoom       Kind = "leave-room"
	KindSendMessage     Kind = "send-message"
	KindTypingStart     Kind = "typing-start"
	KindTypingStop      Kind = "typing-stop"
	KindStatusUpdate    Kind = "status-update"
	KindStartStream     Kind = "start-stream"
	KindJoinStream      Kind = "join-stream"
	KindLeaveStream     Kind = "leave-stream"
	KindGameInvite      Kind = "game-invite"
	KindGameMove        Kind = "game-move"
	KindWatchPresence   Kind = "watch-presence"
	KindUnwatchPresence Kind = "unwatch-presence"
)

// Outbound (gateway -> client).
const (
	KindAuthOK            Kind = "auth-ok"
	KindNewMessage        Kind = "new-message"
	KindMessageSent       Kind = "message-sent"
	KindUserTyping        Kind = "user-typing"
	KindUserStoppedTyping Kind = "user-stopped-typing"
	KindUserStatusChanged Kind = "user-status-changed"
	KindViewerJoined      Kind = "viewer-joined"
	KindViewerLeft        Kind = "viewer-left"
	KindLiveStreamStarted Kind = "live-stream-started"
	KindGameInvitation    Kind = "game-invitation"
	KindGameMoveMade      Kind = "game-move-made"
	KindError             Kind = "error"
)

// SystemSender marks gateway-originated envelopes.
const SystemSender = "system"

// Envelope is the wire format for every event. Sender and Ts are always
// stamped by the gateway; client-supplied values are discarded.
type Envelope struct {
	Kind    Kind           `json:"kind"`
	Sender  string         `json:"sender,omitempty"`
	Target  string         `json:"target,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Ts      int64          `json:"ts,omitempty"` // unix millis, receipt time
}

// ParseEnvelope decodes a raw client frame.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, errs.ErrValidation.WrapMsg("unmarshal envelope", "err", err)
	}
	if env.Kind == "" {
		return nil, errs.ErrValidation.WrapMsg("missing kind")
	}
	return env, nil
}

func MarshalEnvelope(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// ---- room id conventions ----

// RoomKind is informational only; routing semantics do not depend on it
// beyond broadcast scope.
type RoomKind int

const (
	RoomPersonal RoomKind = iota
	RoomChat
	RoomStream
	RoomGame
)

const (
	personalRoomPrefix = "user:"
	chatRoomPrefix     = "room:"
	streamRoomPrefix   = "stream:"
	gameRoomPrefix     = "game:"
)

// PersonalRoom is the always-present room reaching all of a user's
// active connections.
func PersonalRoom(userID string) string { return personalRoomPrefix + userID }

func IsPersonalRoom(roomID string) bool {
	return strings.HasPrefix(roomID, personalRoomPrefix)
}

func StreamRoom(streamID string) string { return streamRoomPrefix + streamID }

func RoomKindOf(roomID string) RoomKind {
	switch {
	case strings.HasPrefix(roomID, personalRoomPrefix):
		return RoomPersonal
	case strings.HasPrefix(roomID, streamRoomPrefix):
		return RoomStream
	case strings.HasPrefix(roomID, gameRoomPrefix):
		return RoomGame
	default:
		return RoomChat
	}
}

// IsRoomTarget reports whether target names a fan-out group rather than a
// single user. Bare ids (no prefix) address users.
func IsRoomTarget(target string) bool {
	return strings.Contains(target, ":") && !strings.HasPrefix(target, personalRoomPrefix)
}

// TargetUser extracts the user id from a user-addressed target.
func TargetUser(target string) string {
	return strings.TrimPrefix(target, personalRoomPrefix)
}

// ---- server-built envelopes ----

func BuildAuthOK(userID, displayName, connID string) *Envelope {
	return &Envelope{
		Kind:   KindAuthOK,
		Sender: SystemSender,
		Ts:     time.Now().UnixMilli(),
		Payload: map[string]any{
			"user_id":      userID,
			"display_name": displayName,
			"conn_id":      connID,
		},
	}
}

// BuildError answers the sender of a rejected event. Errors are never
// broadcast past the originating connection.
func BuildError(err error) *Envelope {
	reason := "invalid event"
	if ce, ok := err.(errs.CodeErrorI); ok {
		reason = ce.EMsg()
	}
	return &Envelope{
		Kind:   KindError,
		Sender: SystemSender,
		Ts:     time.Now().UnixMilli(),
		Payload: map[string]any{
			"code":   errs.CodeOf(err),
			"reason": reason,
		},
	}
}
