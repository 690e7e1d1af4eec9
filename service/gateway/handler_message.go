package gateway

import (
	"SGateway/tools/errs"
)

// handleSendMessage implements the chat path: stamp, resolve, fan out.
// Room sends skip the sender's own connection; the sender gets a
// message-sent confirmation instead (the one explicitly self-echoing
// kind on this path).
func handleSendMessage(ctx *Context, env *Envelope, c *Conn) error {
	if env.Target == "" {
		return errs.ErrValidation.WrapMsg("missing target")
	}
	if len(env.Payload) == 0 {
		return errs.ErrValidation.WrapMsg("missing payload")
	}

	out := &Envelope{
		Kind:    KindNewMessage,
		Sender:  env.Sender,
		Target:  env.Target,
		Payload: env.Payload,
		Ts:      env.Ts,
	}
	delivered := ctx.S.router.Route(out, c.ID)

	// confirmation to the sender only
	ctx.S.router.SendTo(c, &Envelope{
		Kind:   KindMessageSent,
		Sender: SystemSender,
		Target: env.Target,
		Ts:     env.Ts,
		Payload: map[string]any{
			"target":    env.Target,
			"delivered": delivered,
		},
	})

	ctx.S.emitNotify(KindNewMessage, map[string]any{
		"sender":    env.Sender,
		"target":    env.Target,
		"delivered": delivered,
		"ts":        env.Ts,
	})
	return nil
}
