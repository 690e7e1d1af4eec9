package gateway

import (
	"context"
	"time"

	"SGateway/logger"
	"SGateway/service/notify"
	"SGateway/service/storage"
	"SGateway/service/verify"
	"SGateway/tools/safe"

	"github.com/gorilla/websocket"
)

// Conf tunes the gateway core.
type Conf struct {
	NodeID        string
	AuthTimeout   time.Duration // handshake window, transport closed when exceeded
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
	MaxPerUser    int
	WriteWait     time.Duration
	PongWait      time.Duration
}

func (c *Conf) norm() {
	if c.NodeID == "" {
		c.NodeID = "gateway_1"
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
}

// Server wires the registries, router, dispatcher, presence coordinator
// and external collaborators into one gateway instance.
type Server struct {
	conf Conf

	rooms    *RoomRegistry
	conns    *ConnManager
	router   *Router
	disp     *Dispatcher
	presence *PresenceCoordinator
	interest *InterestList
	fanout   *Fanout

	verifier verify.Verifier
	emitter  notify.Emitter
}

func NewServer(conf Conf, verifier verify.Verifier, store storage.PresenceStore, emitter notify.Emitter) *Server {
	conf.norm()
	safe.MustNotNil(verifier, "verifier")
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}

	rooms := NewRoomRegistry()
	conns := NewConnManager(ManagerConf{
		SendQueueSize: conf.SendQueueSize,
		MaxPerUser:    conf.MaxPerUser,
		EvictOldest:   true,
	}, rooms)

	s := &Server{
		conf:     conf,
		rooms:    rooms,
		conns:    conns,
		router:   NewRouter(conns, rooms),
		disp:     NewDispatcher(),
		presence: NewPresenceCoordinator(store),
		interest: NewInterestList(),
		fanout:   NewFanout(conf.FanoutWorkers, conf.FanoutQueue),
		verifier: verifier,
		emitter:  emitter,
	}
	s.presence.SetNotify(s.broadcastPresence)
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.disp.Register(KindJoinRoom, handleJoinRoom)
	s.disp.Register(KindLeaveRoom, handleLeaveRoom)
	s.disp.Register(KindSendMessage, handleSendMessage)
	s.disp.Register(KindTypingStart, handleTypingStart)
	s.disp.Register(KindTypingStop, handleTypingStop)
	s.disp.Register(KindStatusUpdate, handleStatusUpdate)
	s.disp.Register(KindStartStream, handleStartStream)
	s.disp.Register(KindJoinStream, handleJoinStream)
	s.disp.Register(KindLeaveStream, handleLeaveStream)
	s.disp.Register(KindGameInvite, handleGameInvite)
	s.disp.Register(KindGameMove, handleGameMove)
	s.disp.Register(KindWatchPresence, handleWatchPresence)
	s.disp.Register(KindUnwatchPresence, handleUnwatchPresence)
}

func (s *Server) Conns() *ConnManager            { return s.conns }
func (s *Server) Rooms() *RoomRegistry           { return s.rooms }
func (s *Server) RouterOf() *Router              { return s.router }
func (s *Server) Disp() *Dispatcher              { return s.disp }
func (s *Server) Presence() *PresenceCoordinator { return s.presence }
func (s *Server) Interest() *InterestList        { return s.interest }

// Admit creates an authenticated connection and runs the presence and
// analytics side effects. Transport may be nil in tests.
func (s *Server) Admit(connID string, identity verify.Identity, ws *websocket.Conn) (*Conn, error) {
	c, first, evicted, err := s.conns.Admit(connID, identity, ws)
	if err != nil {
		return nil, err
	}
	s.presence.ConnAdded(identity.UserID)
	if evicted != nil {
		// the cap-evicted socket never reaches Disconnect through the
		// registry again, so its lifecycle side effects run here; the
		// ConnAdded above keeps the refcount from dipping to zero
		s.presence.ConnRemoved(evicted.UserID)
		s.emitAnalytics("disconnect", map[string]any{
			"user_id": evicted.UserID,
			"conn_id": evicted.ID,
			"node":    s.conf.NodeID,
		})
	}
	s.emitAnalytics("connect", map[string]any{
		"user_id": identity.UserID,
		"conn_id": connID,
		"node":    s.conf.NodeID,
	})
	logger.Infof("[server] admitted conn=%s user=%s first=%v", connID, identity.UserID, first)
	return c, nil
}

// Disconnect evicts the connection and runs presence/interest cleanup.
// Safe to call for already-evicted ids.
func (s *Server) Disconnect(connID string) {
	c, last := s.conns.Evict(connID)
	if c == nil {
		return
	}
	s.presence.ConnRemoved(c.UserID)
	if last {
		s.interest.DropWatcher(c.UserID)
	}
	s.emitAnalytics("disconnect", map[string]any{
		"user_id": c.UserID,
		"conn_id": connID,
		"node":    s.conf.NodeID,
	})
	logger.Infof("[server] disconnected conn=%s user=%s last=%v", connID, c.UserID, last)
}

// HandleEnvelope stamps and dispatches one inbound event. Rejections are
// answered to the sender only.
func (s *Server) HandleEnvelope(env *Envelope, c *Conn) {
	s.router.Stamp(env, c)
	if err := s.disp.Dispatch(&Context{S: s}, env, c); err != nil {
		logger.Infof("[server] rejected kind=%s conn=%s err=%v", env.Kind, c.ID, err)
		s.router.SendTo(c, BuildError(err))
	}
}

// broadcastPresence pushes a user-status-changed event to the user's own
// devices plus everyone on the interest list, through the fanout pool.
func (s *Server) broadcastPresence(userID string, status Status) {
	env := &Envelope{
		Kind:   KindUserStatusChanged,
		Sender: SystemSender,
		Ts:     time.Now().UnixMilli(),
		Payload: map[string]any{
			"user_id": userID,
			"status":  string(status),
		},
	}
	data, err := MarshalEnvelope(env)
	if err != nil {
		logger.Errorf("[server] marshal presence err=%v", err)
		return
	}

	var targets []*Conn
	targets = append(targets, s.conns.ConnectionsFor(userID)...)
	for _, watcher := range s.interest.WatchersOf(userID) {
		targets = append(targets, s.conns.ConnectionsFor(watcher)...)
	}
	s.fanout.Broadcast(targets, data)
}

func (s *Server) emitNotify(kind Kind, event map[string]any) {
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.emitter.Emit(ctx, notify.SubjectNotifyPrefix+string(kind), event)
	})
}

func (s *Server) emitAnalytics(name string, event map[string]any) {
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.emitter.Emit(ctx, notify.SubjectAnalyticsPrefix+name, event)
	})
}

// Close tears the gateway down: connections first so the write pumps
// drain, then the fanout pool.
func (s *Server) Close() {
	s.conns.Close()
	s.fanout.Close()
	s.emitter.Close()
}
