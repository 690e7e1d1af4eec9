package gateway

import (
	"sync"

	"SGateway/tools/errs"
)

// RoomRegistry owns roomId -> member connection sets. Rooms are
// transient: created on first join, dropped when the last member leaves.
// It is one of the two serialization boundaries in the gateway; nothing
// outside this file touches the underlying maps.
type RoomRegistry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // room -> conn set
	joined  map[string]map[string]struct{} // conn -> room set
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room. Idempotent. Personal rooms are
// managed only by admit/evict, so joining one by hand is rejected.
func (r *RoomRegistry) Join(connID, roomID string) error {
	if IsPersonalRoom(roomID) {
		return errs.ErrRegistryInvariant.WrapMsg("personal room membership is managed by the gateway", "room", roomID)
	}
	r.join(connID, roomID)
	return nil
}

// Leave removes the connection from the room. Leaving a room never
// joined is a no-op success. Leaving the personal room is disallowed.
func (r *RoomRegistry) Leave(connID, roomID string) error {
	if IsPersonalRoom(roomID) {
		return errs.ErrRegistryInvariant.WrapMsg("cannot leave personal room", "room", roomID)
	}
	r.leave(connID, roomID)
	return nil
}

// MembersOf returns a snapshot of current member connection ids. Unknown
// rooms yield an empty slice, not an error.
func (r *RoomRegistry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.members[roomID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// Rooms returns a snapshot of the rooms the connection belongs to.
func (r *RoomRegistry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.joined[connID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for room := range m {
		out = append(out, room)
	}
	return out
}

// RoomCount reports how many rooms currently have members.
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// DropConn removes the connection from every room it was a member of,
// including its personal room. Called on eviction only.
func (r *RoomRegistry) DropConn(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := r.joined[connID]
	if rooms == nil {
		return nil
	}
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
		r.removeMemberLocked(connID, room)
	}
	delete(r.joined, connID)
	return out
}

// join/leave bypass the personal-room guard; admit/evict use them for
// the auto-joined personal room.

func (r *RoomRegistry) join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.members[roomID]
	if m == nil {
		m = make(map[string]struct{})
		r.members[roomID] = m
	}
	m[connID] = struct{}{}

	j := r.joined[connID]
	if j == nil {
		j = make(map[string]struct{})
		r.joined[connID] = j
	}
	j[roomID] = struct{}{}
}

func (r *RoomRegistry) leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeMemberLocked(connID, roomID)
	if j := r.joined[connID]; j != nil {
		delete(j, roomID)
		if len(j) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *RoomRegistry) removeMemberLocked(connID, roomID string) {
	if m := r.members[roomID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			// empty rooms do not accumulate
			delete(r.members, roomID)
		}
	}
}
