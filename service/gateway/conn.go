package gateway

import (
	"sync"
	"time"

	"SGateway/logger"
	"SGateway/service/verify"

	"github.com/gorilla/websocket"
)

// Conn is one live transport session. UserID/DisplayName are bound at
// admit time and never change for the connection's lifetime.
//
// Delivery model: many writers enqueue through TrySend, a single
// writePump goroutine drains toward the transport. The send channel is
// never closed; shutdown is signaled through the done channel so a
// concurrent TrySend during eviction degrades to a silent drop instead
// of a panic.
type Conn struct {
	ID          string
	UserID      string
	DisplayName string

	ws        *websocket.Conn // nil in unit tests
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(id string, identity verify.Identity, ws *websocket.Conn, sendQueueSize int) *Conn {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Conn{
		ID:          id,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		ws:          ws,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}
}

// TrySend enqueues without blocking. Returns false when the queue is full
// or the connection is shutting down; the caller treats that as a
// delivery miss, never as backpressure.
func (c *Conn) TrySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Shutdown stops the write pump and fails all subsequent TrySend calls.
// Idempotent and safe to race with in-flight fan-out.
func (c *Conn) Shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether Shutdown has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Drain returns the outbound queue for test harnesses driving a Conn
// without a live transport.
func (c *Conn) Drain() <-chan []byte { return c.send }

// writePump is the only goroutine allowed to write the websocket
// (gorilla forbids concurrent writers). Pings keep intermediaries from
// reaping idle transports; a failed write ends the pump, the read loop
// notices on its side and evicts.
func (c *Conn) writePump(writeWait, pongWait time.Duration) {
	pingInterval := pongWait * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			if c.ws != nil {
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			}
			return
		case data := <-c.send:
			if c.ws == nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[conn] write failed conn=%s user=%s err=%v", c.ID, c.UserID, err)
				return
			}
		case <-ticker.C:
			if c.ws == nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
