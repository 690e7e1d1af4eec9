package gateway

import (
	"SGateway/tools/decode"
	"SGateway/tools/errs"
)

// StatusPayload carries an explicit client status.
type StatusPayload struct {
	Status string `json:"status"`
}

// handleStatusUpdate applies an explicit Away/Busy/Online switch. The
// coordinator broadcasts the change to the interest list; the connection
// reference count is untouched.
func handleStatusUpdate(ctx *Context, env *Envelope, c *Conn) error {
	p, err := decode.DecodeMap[StatusPayload](env.Payload)
	if err != nil || p.Status == "" {
		return errs.ErrValidation.WrapMsg("missing status")
	}
	return ctx.S.presence.SetStatus(c.UserID, Status(p.Status))
}

// handleWatchPresence subscribes the sender to a user's presence
// changes and answers with a snapshot of the current status so the
// client does not wait for the next transition.
func handleWatchPresence(ctx *Context, env *Envelope, c *Conn) error {
	p, err := decode.DecodeMap[UserPayload](env.Payload)
	if err != nil || p.UserID == "" {
		return errs.ErrValidation.WrapMsg("missing user_id")
	}
	ctx.S.interest.Watch(c.UserID, p.UserID)
	ctx.S.router.SendTo(c, &Envelope{
		Kind:   KindUserStatusChanged,
		Sender: SystemSender,
		Ts:     env.Ts,
		Payload: map[string]any{
			"user_id": p.UserID,
			"status":  string(ctx.S.presence.StatusOf(p.UserID)),
		},
	})
	return nil
}

func handleUnwatchPresence(ctx *Context, env *Envelope, c *Conn) error {
	p, err := decode.DecodeMap[UserPayload](env.Payload)
	if err != nil || p.UserID == "" {
		return errs.ErrValidation.WrapMsg("missing user_id")
	}
	ctx.S.interest.Unwatch(c.UserID, p.UserID)
	return nil
}
