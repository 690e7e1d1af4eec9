package gateway

import (
	"SGateway/tools/decode"
	"SGateway/tools/errs"
)

// UserPayload addresses a single user.
type UserPayload struct {
	UserID string `json:"user_id"`
}

func typingTarget(env *Envelope) (string, error) {
	if env.Target != "" && !IsRoomTarget(env.Target) {
		return TargetUser(env.Target), nil
	}
	p, err := decode.DecodeMap[UserPayload](env.Payload)
	if err != nil || p.UserID == "" {
		return "", errs.ErrValidation.WrapMsg("missing user_id")
	}
	return p.UserID, nil
}

// Typing signals are pure at-most-once hints: delivered to all of the
// peer's devices, dropped without ceremony when the peer is offline.

func handleTypingStart(ctx *Context, env *Envelope, c *Conn) error {
	target, err := typingTarget(env)
	if err != nil {
		return err
	}
	ctx.S.router.SendToUser(target, &Envelope{
		Kind:    KindUserTyping,
		Sender:  env.Sender,
		Target:  target,
		Ts:      env.Ts,
		Payload: map[string]any{"user_id": env.Sender},
	})
	return nil
}

func handleTypingStop(ctx *Context, env *Envelope, c *Conn) error {
	target, err := typingTarget(env)
	if err != nil {
		return err
	}
	ctx.S.router.SendToUser(target, &Envelope{
		Kind:    KindUserStoppedTyping,
		Sender:  env.Sender,
		Target:  target,
		Ts:      env.Ts,
		Payload: map[string]any{"user_id": env.Sender},
	})
	return nil
}
