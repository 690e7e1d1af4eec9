package gateway

import (
	"context"
	"net"
	"net/http"
	"time"

	"SGateway/logger"
	"SGateway/service/verify"
	"SGateway/tools/decode"
	"SGateway/tools/errs"
	"SGateway/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AuthPayload is the credential envelope the client must send first.
type AuthPayload struct {
	Token string `json:"token"`
}

// HandleWS upgrades the transport and runs the connection lifecycle:
// handshake, admit, read loop, evict. One goroutine per connection reads
// inbound frames; the write pump started at admit time is the only
// writer for the transport.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	identity, err := s.handshake(ws)
	if err != nil {
		// failed handshake terminates the transport, nothing is sent
		logger.Infof("[ws] handshake rejected remote=%s err=%v", ws.RemoteAddr(), err)
		_ = ws.Close()
		return
	}

	connID := ids.GenerateString()
	conn, err := s.Admit(connID, identity, ws)
	if err != nil {
		logger.Errorf("[ws] admit failed user=%s err=%v", identity.UserID, err)
		_ = ws.Close()
		return
	}

	go conn.writePump(s.conf.WriteWait, s.conf.PongWait)
	s.router.SendTo(conn, BuildAuthOK(identity.UserID, identity.DisplayName, connID))

	_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	})

	s.readLoop(conn, ws)

	s.Disconnect(connID)
	conn.Shutdown()
	_ = ws.Close()
}

// handshake reads exactly one frame: an auth envelope carrying the
// opaque credential. The verifier is called exactly once; no retries.
// A handshake that does not finish inside AuthTimeout closes the
// transport without admitting it.
func (s *Server) handshake(ws *websocket.Conn) (identity verify.Identity, err error) {
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.AuthTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return identity, errs.ErrAuth.WrapMsg("read handshake", "err", err)
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		return identity, errs.ErrAuth.WrapMsg("parse handshake")
	}
	if env.Kind != KindAuth {
		return identity, errs.ErrAuth.WrapMsg("first frame must be auth", "kind", env.Kind)
	}
	p, err := decode.DecodeMap[AuthPayload](env.Payload)
	if err != nil || p.Token == "" {
		return identity, errs.ErrAuth.WrapMsg("missing token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.conf.AuthTimeout)
	defer cancel()
	return s.verifier.Verify(ctx, p.Token)
}

func (s *Server) readLoop(conn *Conn, ws *websocket.Conn) {
	for {
		mt, raw, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s user=%s", conn.ID, conn.UserID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s user=%s", conn.ID, conn.UserID)
			} else {
				logger.Infof("[ws] read err conn=%s user=%s err=%v", conn.ID, conn.UserID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		env, perr := ParseEnvelope(raw)
		if perr != nil {
			sample := raw
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", conn.ID, perr, sample)
			s.router.SendTo(conn, BuildError(perr))
			continue
		}
		if env.Kind == KindAuth {
			// the verifier runs once per connection attempt, never again
			s.router.SendTo(conn, BuildError(errs.ErrValidation.WrapMsg("already authenticated")))
			continue
		}
		s.HandleEnvelope(env, conn)
	}
}

// RegisterRoutes mounts the gateway endpoints on a gin engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node":        s.conf.NodeID,
		"connections": s.conns.Len(),
		"users":       s.conns.UserCount(),
		"rooms":       s.rooms.RoomCount(),
	})
}
