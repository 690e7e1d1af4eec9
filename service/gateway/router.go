package gateway

import (
	"time"

	"SGateway/logger"
)

// Router resolves envelope targets through the two registries and pushes
// to each destination's outbound queue. Fan-out is independent per
// connection: a slow or closed destination is dropped and logged, never
// retried, and never blocks delivery to the others.
type Router struct {
	conns *ConnManager
	rooms *RoomRegistry
}

func NewRouter(conns *ConnManager, rooms *RoomRegistry) *Router {
	return &Router{conns: conns, rooms: rooms}
}

// Stamp overwrites any client-asserted sender with the connection's
// bound identity and sets the receipt timestamp. Ordering is per-room,
// per-delivery-path only; no global order is promised.
func (r *Router) Stamp(env *Envelope, sender *Conn) {
	env.Sender = sender.UserID
	env.Ts = time.Now().UnixMilli()
}

// SendTo delivers to a single connection. Returns false on a delivery
// miss (queue full or connection gone).
func (r *Router) SendTo(c *Conn, env *Envelope) bool {
	data, err := MarshalEnvelope(env)
	if err != nil {
		logger.Errorf("[router] marshal kind=%s err=%v", env.Kind, err)
		return false
	}
	if !c.TrySend(data) {
		logger.Infof("[router] delivery miss conn=%s user=%s kind=%s", c.ID, c.UserID, env.Kind)
		return false
	}
	return true
}

// SendToUser fans out to every active connection of a user (all of their
// devices). "Target offline" is a normal condition: zero deliveries is
// not an error.
func (r *Router) SendToUser(userID string, env *Envelope) int {
	conns := r.conns.ConnectionsFor(userID)
	if len(conns) == 0 {
		return 0
	}
	data, err := MarshalEnvelope(env)
	if err != nil {
		logger.Errorf("[router] marshal kind=%s err=%v", env.Kind, err)
		return 0
	}
	n := 0
	for _, c := range conns {
		if c.TrySend(data) {
			n++
		} else {
			logger.Infof("[router] delivery miss conn=%s user=%s kind=%s", c.ID, c.UserID, env.Kind)
		}
	}
	return n
}

// BroadcastRoom fans out to the room's current members, skipping
// exceptConnID (the sender's own connection for room sends; self-echo
// happens only through explicitly self-echoing kinds).
func (r *Router) BroadcastRoom(roomID string, env *Envelope, exceptConnID string) int {
	members := r.rooms.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}
	data, err := MarshalEnvelope(env)
	if err != nil {
		logger.Errorf("[router] marshal kind=%s err=%v", env.Kind, err)
		return 0
	}
	n := 0
	for _, connID := range members {
		if connID == exceptConnID {
			continue
		}
		c, ok := r.conns.Get(connID)
		if !ok {
			// membership can be stale by one event during eviction
			continue
		}
		if c.TrySend(data) {
			n++
		} else {
			logger.Infof("[router] delivery miss conn=%s user=%s kind=%s room=%s", c.ID, c.UserID, env.Kind, roomID)
		}
	}
	return n
}

// Route delivers an already-stamped envelope to its target: a room id
// fans out to current members, anything else addresses a user's personal
// delivery path.
func (r *Router) Route(env *Envelope, exceptConnID string) int {
	if IsRoomTarget(env.Target) {
		return r.BroadcastRoom(env.Target, env, exceptConnID)
	}
	return r.SendToUser(TargetUser(env.Target), env)
}
