package notify

import (
	"context"
	"encoding/json"
	"time"

	"SGateway/logger"

	"github.com/nats-io/nats.go"
)

// Emitter hands domain events to application collaborators (notification
// dispatch, analytics). Fire-and-forget: failures are logged, never
// propagated into the gateway's delivery path.
type Emitter interface {
	Emit(ctx context.Context, subject string, event any) error
	Close()
}

// Subjects the gateway publishes on.
const (
	SubjectNotifyPrefix    = "gateway.notify."    // + event kind
	SubjectAnalyticsPrefix = "gateway.analytics." // + event name
)

type NatsConfig struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NatsEmitter publishes JSON events over core NATS.
type NatsEmitter struct {
	nc *nats.Conn
}

func NewNatsEmitter(cfg NatsConfig) (*NatsEmitter, error) {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "sgateway"
	}
	nc, err := nats.Connect(
		joinServers(cfg.Servers),
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NatsEmitter{nc: nc}, nil
}

func (e *NatsEmitter) Emit(_ context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("[notify] marshal subject=%s err=%v", subject, err)
		return err
	}
	if err := e.nc.Publish(subject, data); err != nil {
		logger.Errorf("[notify] publish subject=%s err=%v", subject, err)
		return err
	}
	return nil
}

func (e *NatsEmitter) Close() {
	if e.nc != nil {
		e.nc.Drain()
	}
}

func joinServers(servers []string) string {
	out := ""
	for i, s := range servers {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// NopEmitter drops everything. Wired when no NATS servers are configured.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) error { return nil }
func (NopEmitter) Close()                                  {}
