package gateway

import (
	"SGateway/tools/decode"
	"SGateway/tools/errs"
)

// StreamPayload identifies a live stream.
type StreamPayload struct {
	StreamID string `json:"stream_id"`
	Title    string `json:"title,omitempty"`
}

func streamFromEnvelope(env *Envelope) (*StreamPayload, error) {
	p, err := decode.DecodeMap[StreamPayload](env.Payload)
	if err != nil || p.StreamID == "" {
		return nil, errs.ErrValidation.WrapMsg("missing stream_id")
	}
	return p, nil
}

// handleStartStream opens the stream room with the broadcaster as its
// first member and announces the stream to the broadcaster's watchers.
func handleStartStream(ctx *Context, env *Envelope, c *Conn) error {
	p, err := streamFromEnvelope(env)
	if err != nil {
		return err
	}
	room := StreamRoom(p.StreamID)
	if err := ctx.S.rooms.Join(c.ID, room); err != nil {
		return err
	}

	ann := &Envelope{
		Kind:   KindLiveStreamStarted,
		Sender: env.Sender,
		Target: room,
		Ts:     env.Ts,
		Payload: map[string]any{
			"stream_id": p.StreamID,
			"title":     p.Title,
			"user_id":   env.Sender,
		},
	}
	for _, watcher := range ctx.S.interest.WatchersOf(c.UserID) {
		ctx.S.router.SendToUser(watcher, ann)
	}

	ctx.S.emitNotify(KindLiveStreamStarted, map[string]any{
		"stream_id": p.StreamID,
		"user_id":   env.Sender,
		"title":     p.Title,
		"ts":        env.Ts,
	})
	return nil
}

// handleJoinStream adds a viewer and tells the room about it. The
// joining connection does not get its own viewer-joined echo.
func handleJoinStream(ctx *Context, env *Envelope, c *Conn) error {
	p, err := streamFromEnvelope(env)
	if err != nil {
		return err
	}
	room := StreamRoom(p.StreamID)
	if err := ctx.S.rooms.Join(c.ID, room); err != nil {
		return err
	}
	ctx.S.router.BroadcastRoom(room, &Envelope{
		Kind:   KindViewerJoined,
		Sender: env.Sender,
		Target: room,
		Ts:     env.Ts,
		Payload: map[string]any{
			"stream_id": p.StreamID,
			"user_id":   env.Sender,
		},
	}, c.ID)
	return nil
}

func handleLeaveStream(ctx *Context, env *Envelope, c *Conn) error {
	p, err := streamFromEnvelope(env)
	if err != nil {
		return err
	}
	room := StreamRoom(p.StreamID)
	if err := ctx.S.rooms.Leave(c.ID, room); err != nil {
		return err
	}
	ctx.S.router.BroadcastRoom(room, &Envelope{
		Kind:   KindViewerLeft,
		Sender: env.Sender,
		Target: room,
		Ts:     env.Ts,
		Payload: map[string]any{
			"stream_id": p.StreamID,
			"user_id":   env.Sender,
		},
	}, c.ID)
	return nil
}
