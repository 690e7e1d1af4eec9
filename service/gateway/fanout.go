package gateway

import (
	"sync"

	"SGateway/logger"
)

type fanoutJob struct {
	conns   []*Conn
	payload []byte
}

// Fanout is a small worker pool for wide broadcasts (presence changes to
// watcher sets) so a large audience never runs on a handler goroutine.
type Fanout struct {
	mu     sync.RWMutex
	jobs   chan fanoutJob
	closed bool
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					if !c.TrySend(job.payload) {
						// slow or gone client: drop, never stall the pool
						logger.Warnf("[fanout] delivery miss conn=%s user=%s", c.ID, c.UserID)
					}
				}
			}
		}()
	}
	return f
}

// Broadcast enqueues one payload for a snapshot of connections. A
// broadcast racing shutdown is dropped.
func (f *Fanout) Broadcast(conns []*Conn, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}

func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.jobs)
}
