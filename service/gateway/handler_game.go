package gateway

import (
	"SGateway/tools/errs"
)

// handleGameInvite routes an invitation to all of the invitee's devices
// and hands it to notification dispatch for the offline case.
func handleGameInvite(ctx *Context, env *Envelope, c *Conn) error {
	if env.Target == "" || IsRoomTarget(env.Target) {
		return errs.ErrValidation.WrapMsg("game-invite targets a user")
	}
	invitee := TargetUser(env.Target)
	ctx.S.router.SendToUser(invitee, &Envelope{
		Kind:    KindGameInvitation,
		Sender:  env.Sender,
		Target:  invitee,
		Ts:      env.Ts,
		Payload: env.Payload,
	})
	ctx.S.emitNotify(KindGameInvitation, map[string]any{
		"sender": env.Sender,
		"target": invitee,
		"ts":     env.Ts,
	})
	return nil
}

// handleGameMove fans a move out to the game room, everyone but the
// mover. Moves are at-most-once like everything else here; the game
// service owns authoritative state.
func handleGameMove(ctx *Context, env *Envelope, c *Conn) error {
	if env.Target == "" || !IsRoomTarget(env.Target) {
		return errs.ErrValidation.WrapMsg("game-move targets a room")
	}
	if len(env.Payload) == 0 {
		return errs.ErrValidation.WrapMsg("missing move payload")
	}
	ctx.S.router.BroadcastRoom(env.Target, &Envelope{
		Kind:    KindGameMoveMade,
		Sender:  env.Sender,
		Target:  env.Target,
		Ts:      env.Ts,
		Payload: env.Payload,
	}, c.ID)
	return nil
}
