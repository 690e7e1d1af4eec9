package gateway

import (
	"SGateway/tools/decode"
	"SGateway/tools/errs"
)

// RoomPayload addresses a fan-out group by id.
type RoomPayload struct {
	Room string `json:"room"`
}

func roomFromEnvelope(env *Envelope) (string, error) {
	if env.Target != "" {
		return env.Target, nil
	}
	p, err := decode.DecodeMap[RoomPayload](env.Payload)
	if err != nil || p.Room == "" {
		return "", errs.ErrValidation.WrapMsg("missing room")
	}
	return p.Room, nil
}

// handleJoinRoom: idempotent explicit join. Personal rooms are off
// limits, those come and go with the connection itself.
func handleJoinRoom(ctx *Context, env *Envelope, c *Conn) error {
	room, err := roomFromEnvelope(env)
	if err != nil {
		return err
	}
	return ctx.S.rooms.Join(c.ID, room)
}

// handleLeaveRoom: idempotent; leaving a never-joined room succeeds.
func handleLeaveRoom(ctx *Context, env *Envelope, c *Conn) error {
	room, err := roomFromEnvelope(env)
	if err != nil {
		return err
	}
	return ctx.S.rooms.Leave(c.ID, room)
}
