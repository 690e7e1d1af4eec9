package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"SGateway/service/notify"
	"SGateway/service/storage"
	"SGateway/service/verify"
	"SGateway/tools/errs"

	"github.com/pkg/errors"
)

// recordingStore captures presence-store writes for assertions.
type recordingStore struct {
	mu     sync.Mutex
	writes []string // "user=status"
}

func (r *recordingStore) Set(_ context.Context, userID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, userID+"="+status)
	return nil
}

func (r *recordingStore) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		return ""
	}
	return r.writes[len(r.writes)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func TestPresenceReferenceCounting(t *testing.T) {
	store := &recordingStore{}
	p := NewPresenceCoordinator(store)

	var transitions []Status
	p.SetNotify(func(_ string, s Status) { transitions = append(transitions, s) })

	p.ConnAdded("u1") // first device
	p.ConnAdded("u1") // second device
	if p.StatusOf("u1") != StatusOnline {
		t.Fatalf("user with connections must be online")
	}

	p.ConnRemoved("u1") // one device left
	if p.StatusOf("u1") != StatusOnline {
		t.Fatalf("user must stay online while a connection remains")
	}

	p.ConnRemoved("u1") // last device gone
	if p.StatusOf("u1") != StatusOffline {
		t.Fatalf("user must be offline after the last eviction")
	}

	if len(transitions) != 2 || transitions[0] != StatusOnline || transitions[1] != StatusOffline {
		t.Fatalf("expected exactly [online offline] transitions, got %v", transitions)
	}
	waitFor(t, func() bool { return store.last() == "u1=offline" })
}

func TestStatusUpdateDoesNotTouchRefs(t *testing.T) {
	p := NewPresenceCoordinator(nil)
	p.ConnAdded("u1")

	if err := p.SetStatus("u1", StatusAway); err != nil {
		t.Fatalf("SetStatus away: %v", err)
	}
	if p.StatusOf("u1") != StatusAway {
		t.Fatalf("expected away, got %s", p.StatusOf("u1"))
	}

	// status games do not keep a disconnected user online
	p.ConnRemoved("u1")
	if p.StatusOf("u1") != StatusOffline {
		t.Fatalf("refcount must win over explicit status")
	}
}

func TestStatusUpdateValidation(t *testing.T) {
	p := NewPresenceCoordinator(nil)

	if err := p.SetStatus("ghost", StatusAway); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("status for a disconnected user must be rejected, got %v", err)
	}
	p.ConnAdded("u1")
	if err := p.SetStatus("u1", Status("invisible")); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}
	if err := p.SetStatus("u1", StatusOffline); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("clients cannot force offline, got %v", err)
	}
}

func TestRepeatedStatusNotRebroadcast(t *testing.T) {
	p := NewPresenceCoordinator(nil)
	n := 0
	p.SetNotify(func(string, Status) { n++ })

	p.ConnAdded("u1")
	_ = p.SetStatus("u1", StatusBusy)
	_ = p.SetStatus("u1", StatusBusy)
	if n != 2 { // online + busy, the duplicate busy is suppressed
		t.Fatalf("expected 2 notifications, got %d", n)
	}
}

func TestCapEvictionReleasesPresence(t *testing.T) {
	s := NewServer(Conf{
		NodeID:        "gw-test",
		SendQueueSize: 8,
		FanoutWorkers: 1,
		FanoutQueue:   64,
		MaxPerUser:    1,
	}, stubVerifier{}, storage.NopPresence{}, notify.NopEmitter{})
	defer s.Close()

	if _, err := s.Admit("001", verify.Identity{UserID: "u1"}, nil); err != nil {
		t.Fatalf("admit 001: %v", err)
	}
	// second device displaces the first under MaxPerUser=1
	if _, err := s.Admit("002", verify.Identity{UserID: "u1"}, nil); err != nil {
		t.Fatalf("admit 002: %v", err)
	}
	if s.Presence().StatusOf("u1") != StatusOnline {
		t.Fatalf("user must stay online across a cap eviction")
	}

	// the displaced socket's read loop exits later and reports in; by
	// then the registry no longer knows it, so this must be a no-op
	s.Disconnect("001")
	if s.Presence().StatusOf("u1") != StatusOnline {
		t.Fatalf("late disconnect of an already-evicted conn must not flip the user offline")
	}

	s.Disconnect("002")
	if s.Presence().StatusOf("u1") != StatusOffline {
		t.Fatalf("user with zero connections must be offline, got %q", s.Presence().StatusOf("u1"))
	}
	if got := s.Conns().Len(); got != 0 {
		t.Fatalf("registry must be empty, got %d", got)
	}
}

func TestInterestList(t *testing.T) {
	l := NewInterestList()

	l.Watch("alice", "bob")
	l.Watch("carol", "bob")
	l.Watch("alice", "bob") // idempotent

	got := l.WatchersOf("bob")
	if len(got) != 2 {
		t.Fatalf("expected 2 watchers, got %v", got)
	}

	l.Unwatch("carol", "bob")
	if got := l.WatchersOf("bob"); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected only alice, got %v", got)
	}

	l.DropWatcher("alice")
	if got := l.WatchersOf("bob"); len(got) != 0 {
		t.Fatalf("dropped watcher must leave no interest behind, got %v", got)
	}
}

func TestSelfWatchIgnored(t *testing.T) {
	l := NewInterestList()
	l.Watch("alice", "alice")
	if got := l.WatchersOf("alice"); len(got) != 0 {
		t.Fatalf("self-watch is pointless, own devices are always notified: %v", got)
	}
}
