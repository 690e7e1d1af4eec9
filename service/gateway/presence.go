package gateway

import (
	"context"
	"sync"
	"time"

	"SGateway/logger"
	"SGateway/service/storage"
	"SGateway/tools/errs"
	"SGateway/tools/safe"
)

// Status is a user's derived reachability, reference-counted across
// their active connections.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

func ValidClientStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

type presenceEntry struct {
	refs   int
	status Status
}

// PresenceCoordinator turns connect/disconnect/status-change events into
// presence-store writes and broadcast notifications. Offline happens
// only when the last connection goes away (counted, not boolean).
// Store writes are best-effort and not transactional with the in-memory
// transition; each transition is broadcast independently, consumers are
// expected to be idempotent on repeated identical values.
type PresenceCoordinator struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry

	store  storage.PresenceStore
	notify func(userID string, status Status) // broadcast hook, set by Server
}

func NewPresenceCoordinator(store storage.PresenceStore) *PresenceCoordinator {
	if store == nil {
		store = storage.NopPresence{}
	}
	return &PresenceCoordinator{
		entries: make(map[string]*presenceEntry),
		store:   store,
	}
}

// SetNotify installs the broadcast hook. Must be called before the first
// connection is admitted.
func (p *PresenceCoordinator) SetNotify(fn func(userID string, status Status)) {
	p.notify = fn
}

// ConnAdded bumps the user's connection count. The Offline -> Online
// transition fires only on the first connection.
func (p *PresenceCoordinator) ConnAdded(userID string) {
	p.mu.Lock()
	e := p.entries[userID]
	if e == nil {
		e = &presenceEntry{}
		p.entries[userID] = e
	}
	e.refs++
	first := e.refs == 1
	if first {
		e.status = StatusOnline
	}
	p.mu.Unlock()

	if first {
		p.transition(userID, StatusOnline)
	}
}

// ConnRemoved drops the count; Online -> Offline fires only when the
// last connection for the user is evicted.
func (p *PresenceCoordinator) ConnRemoved(userID string) {
	p.mu.Lock()
	e := p.entries[userID]
	if e == nil {
		p.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs <= 0
	if last {
		delete(p.entries, userID)
	}
	p.mu.Unlock()

	if last {
		p.transition(userID, StatusOffline)
	}
}

// SetStatus applies an explicit client-sent status. It does not touch
// the reference count and is rejected for users with no connections.
func (p *PresenceCoordinator) SetStatus(userID string, status Status) error {
	if !ValidClientStatus(status) {
		return errs.ErrValidation.WrapMsg("unknown status", "status", status)
	}
	p.mu.Lock()
	e := p.entries[userID]
	if e == nil || e.refs <= 0 {
		p.mu.Unlock()
		return errs.ErrValidation.WrapMsg("user not connected", "user", userID)
	}
	changed := e.status != status
	e.status = status
	p.mu.Unlock()

	if changed {
		p.transition(userID, status)
	}
	return nil
}

// StatusOf returns the user's current derived status.
func (p *PresenceCoordinator) StatusOf(userID string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.entries[userID]; e != nil && e.refs > 0 {
		return e.status
	}
	return StatusOffline
}

func (p *PresenceCoordinator) transition(userID string, status Status) {
	// fire-and-forget store write; failures are logged, not propagated
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.store.Set(ctx, userID, string(status)); err != nil {
			logger.Errorf("[presence] store set user=%s status=%s err=%v", userID, status, err)
		}
	})
	if p.notify != nil {
		p.notify(userID, status)
	}
}
