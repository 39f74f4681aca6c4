package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceMirror writes through the gateway's online state to redis so
// collaborators outside the process (the REST surface, ops tooling) can
// observe liveness. The in-memory registry stays the source of truth for
// routing; a lost redis write never affects delivery.
type PresenceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewPresenceMirror(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*PresenceMirror, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &PresenceMirror{rdb: rdb, ttl: ttl}, nil
}

// presence key: im:presence:<user>; value is the gateway node id, TTL bounds
// staleness after a crash.
func presenceKey(user string) string { return "im:presence:" + user }

func (p *PresenceMirror) Online(ctx context.Context, user, nodeID string) error {
	if p == nil {
		return nil
	}
	return errors.Wrap(p.rdb.Set(ctx, presenceKey(user), nodeID, p.ttl).Err(), "presence online")
}

// Refresh renews the TTL; called on heartbeat.
func (p *PresenceMirror) Refresh(ctx context.Context, user string) error {
	if p == nil {
		return nil
	}
	return errors.Wrap(p.rdb.Expire(ctx, presenceKey(user), p.ttl).Err(), "presence refresh")
}

func (p *PresenceMirror) Offline(ctx context.Context, user string) error {
	if p == nil {
		return nil
	}
	return errors.Wrap(p.rdb.Del(ctx, presenceKey(user)).Err(), "presence offline")
}

// Lookup reports whether a user is marked online and on which node.
func (p *PresenceMirror) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if p == nil {
		return "", false, nil
	}
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "presence lookup")
	}
	return val, true, nil
}

func (p *PresenceMirror) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
