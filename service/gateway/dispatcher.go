package gateway

import (
	"SGateway/tools/errs"
)

// HandlerFunc processes one inbound envelope from an admitted
// connection. Handlers run on the connection's read goroutine; anything
// they deliver goes through the router's non-blocking sends.
type HandlerFunc func(ctx *Context, env *Envelope, c *Conn) error

// Context carries the server into handlers.
type Context struct {
	S *Server
}

// Dispatcher maps event kinds to handlers.
type Dispatcher struct {
	handlers map[Kind]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]HandlerFunc)}
}

func (d *Dispatcher) Register(k Kind, h HandlerFunc) { d.handlers[k] = h }

func (d *Dispatcher) Dispatch(ctx *Context, env *Envelope, c *Conn) error {
	h, ok := d.handlers[env.Kind]
	if !ok {
		return errs.ErrValidation.WrapMsg("unknown kind", "kind", env.Kind)
	}
	return h(ctx, env, c)
}
