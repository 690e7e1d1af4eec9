package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"SGateway/logger"
	"SGateway/tools/ids"
)

// AppConfig holds everything the gateway process needs at boot.
// Defaults suit local development; GW_* env vars override.
type AppConfig struct {
	NodeID   string // gateway node id, participates in presence values and analytics
	SnowNode int64  // snowflake node part (0~1023)
	Port     int    // HTTP/WebSocket listen port

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration // online key validity in the presence store

	NatsServers []string // empty -> collaborator emitter disabled

	AuthTimeout   time.Duration // handshake must finish within this window
	SendQueueSize int           // per-connection outbound queue capacity
	FanoutWorkers int
	FanoutQueue   int
	MaxPerUser    int // max simultaneous connections per user (<=0 unlimited)

	WriteWait time.Duration // transport write deadline
	PongWait  time.Duration // read deadline refreshed by pongs
}

var Global = AppConfig{
	NodeID:        envStr("GW_NODE_ID", "gateway_10"),
	SnowNode:      int64(envInt("GW_SNOW_NODE", 100)),
	Port:          envInt("GW_PORT", 8080),
	RedisAddr:     envStr("GW_REDIS_ADDR", "127.0.0.1:6379"),
	RedisPassword: envStr("GW_REDIS_PASSWORD", ""),
	RedisDB:       envInt("GW_REDIS_DB", 0),
	PresenceTTL:   envDur("GW_PRESENCE_TTL", 5*time.Minute),
	NatsServers:   envList("GW_NATS_SERVERS"),
	AuthTimeout:   envDur("GW_AUTH_TIMEOUT", 10*time.Second),
	SendQueueSize: envInt("GW_SEND_QUEUE", 256),
	FanoutWorkers: envInt("GW_FANOUT_WORKERS", 4),
	FanoutQueue:   envInt("GW_FANOUT_QUEUE", 1024),
	MaxPerUser:    envInt("GW_MAX_PER_USER", 0),
	WriteWait:     envDur("GW_WRITE_WAIT", 5*time.Second),
	PongWait:      envDur("GW_PONG_WAIT", 75*time.Second),
}

func ConfigAll() {
	ConfigIds()
}

func ConfigIds() {
	logger.Infof("configure id generator node=%d", Global.SnowNode)
	ids.SetNodeID(Global.SnowNode)
}

func GetJwtSecret() []byte {
	if s := os.Getenv("GW_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	// dev-only fallback
	return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
