package gateway

import (
	"sync"

	"SGateway/logger"
	"SGateway/service/verify"
	"SGateway/tools/errs"

	"github.com/gorilla/websocket"
)

// ManagerConf tunes the connection registry.
type ManagerConf struct {
	SendQueueSize int // per-connection outbound queue
	MaxPerUser    int // max connections per user (<=0 unlimited)
	EvictOldest   bool
}

func (c *ManagerConf) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
}

// ConnManager owns the set of live connections: connId -> Conn plus
// userId -> conn set (a user may have several devices/tabs open). All
// mutation goes through Admit/Evict under one mutex so simultaneous
// connections of the same user cannot lose updates; reads hand out
// snapshot copies.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Conn
	byUser map[string]map[string]*Conn

	rooms *RoomRegistry
	conf  ManagerConf
}

func NewConnManager(conf ManagerConf, rooms *RoomRegistry) *ConnManager {
	conf.norm()
	return &ConnManager{
		byConn: make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		rooms:  rooms,
		conf:   conf,
	}
}

// Admit registers an authenticated connection and auto-joins its
// personal room. Returns the Conn, whether this is the user's first
// active connection, and the connection displaced by the per-user cap,
// if any; the caller runs the full disconnect side effects for it.
// Index and room mutations happen under one critical section so a
// concurrent Admit cannot cap-evict a conn before its personal-room
// join lands.
func (m *ConnManager) Admit(connID string, identity verify.Identity, ws *websocket.Conn) (*Conn, bool, *Conn, error) {
	if connID == "" || identity.UserID == "" {
		return nil, false, nil, errs.ErrValidation.WrapMsg("connID/user empty")
	}
	m.mu.Lock()
	if _, exists := m.byConn[connID]; exists {
		m.mu.Unlock()
		return nil, false, nil, errs.ErrValidation.WrapMsg("connID exists", "conn", connID)
	}

	var evicted *Conn
	mm := m.byUser[identity.UserID]
	if m.conf.MaxPerUser > 0 && len(mm) >= m.conf.MaxPerUser {
		if !m.conf.EvictOldest {
			m.mu.Unlock()
			return nil, false, nil, errs.ErrValidation.WrapMsg("too many connections", "user", identity.UserID)
		}
		evicted = m.oldestLocked(mm)
		if evicted != nil {
			delete(mm, evicted.ID)
			delete(m.byConn, evicted.ID)
		}
	}

	c := NewConn(connID, identity, ws, m.conf.SendQueueSize)
	m.byConn[connID] = c
	if mm == nil {
		mm = make(map[string]*Conn)
		m.byUser[identity.UserID] = mm
	}
	mm[connID] = c
	first := len(mm) == 1

	// personal-room membership holds for the connection's entire lifetime
	m.rooms.join(connID, PersonalRoom(identity.UserID))
	if evicted != nil {
		m.rooms.DropConn(evicted.ID)
	}
	m.mu.Unlock()

	if evicted != nil {
		evicted.Shutdown()
		logger.Infof("[connmgr] evicted oldest conn=%s user=%s (max per user)", evicted.ID, evicted.UserID)
	}
	return c, first, evicted, nil
}

// Evict removes the connection from both indexes and from every room it
// was a member of. Returns the Conn and whether this was the user's last
// active connection. Safe to call concurrently with in-flight fan-out:
// the Conn is shut down first, so late enqueues fail silently.
func (m *ConnManager) Evict(connID string) (*Conn, bool) {
	m.mu.Lock()
	c, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	delete(m.byConn, connID)
	last := false
	if mm := m.byUser[c.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(m.byUser, c.UserID)
			last = true
		}
	}
	m.mu.Unlock()

	c.Shutdown()
	m.rooms.DropConn(connID)
	return c, last
}

// ConnectionsFor returns a snapshot of all live connections of a user.
func (m *ConnManager) ConnectionsFor(userID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// Get resolves a connection id to its Conn.
func (m *ConnManager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

// Len reports the number of live connections.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// UserCount reports the number of distinct users with at least one
// connection.
func (m *ConnManager) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// Close shuts down every connection. Used on process exit.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.byConn))
	for _, c := range m.byConn {
		conns = append(conns, c)
	}
	m.byConn = make(map[string]*Conn)
	m.byUser = make(map[string]map[string]*Conn)
	m.mu.Unlock()

	for _, c := range conns {
		m.rooms.DropConn(c.ID)
		c.Shutdown()
	}
}

func (m *ConnManager) oldestLocked(mm map[string]*Conn) *Conn {
	var oldest *Conn
	for _, c := range mm {
		// snowflake ids are time-ordered, smallest id is the oldest conn
		if oldest == nil || c.ID < oldest.ID {
			oldest = c
		}
	}
	return oldest
}
