package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

var rdb *redis.Client

func InitRedis(c Config) error {
	rdb = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return rdb.Ping(context.Background()).Err()
}

// PresenceStore is the external key/value store holding userId -> status.
// The gateway is the sole writer for connection-driven transitions; writes
// are best-effort and never read back.
type PresenceStore interface {
	Set(ctx context.Context, userID, status string) error
}

// presence key: im:presence:<user>
// value: "<status>@<node>", TTL bounds staleness if the gateway dies
func presenceKey(user string) string { return "im:presence:" + user }

// RedisPresence writes presence through go-redis. An offline transition
// deletes the key instead of storing "offline".
type RedisPresence struct {
	NodeID string
	TTL    time.Duration
}

func NewRedisPresence(nodeID string, ttl time.Duration) *RedisPresence {
	return &RedisPresence{NodeID: nodeID, TTL: ttl}
}

func (p *RedisPresence) Set(ctx context.Context, userID, status string) error {
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	if status == "offline" {
		if err := rdb.Del(ctx, presenceKey(userID)).Err(); err != nil {
			return errors.Wrapf(err, "presence del user=%s", userID)
		}
		return nil
	}
	val := status + "@" + p.NodeID
	if err := rdb.Set(ctx, presenceKey(userID), val, p.TTL).Err(); err != nil {
		return errors.Wrapf(err, "presence set user=%s status=%s", userID, status)
	}
	return nil
}

// PresenceLookup checks whether the user has a live presence record.
// Ops/debug helper; routing never depends on it.
func PresenceLookup(ctx context.Context, user string) (value string, online bool, err error) {
	if rdb == nil {
		return "", false, fmt.Errorf("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// NopPresence discards writes. Used in tests and when redis is not configured.
type NopPresence struct{}

func (NopPresence) Set(context.Context, string, string) error { return nil }
