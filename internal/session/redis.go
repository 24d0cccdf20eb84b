package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jobscout:session:"

// Redis stores sessions with a server-side TTL, so expiry needs no sweep.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Create(ctx context.Context, id Identity) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	tok := newToken()
	if err := r.rdb.Set(ctx, keyPrefix+tok, b, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return tok, nil
}

func (r *Redis) Lookup(ctx context.Context, token string) (Identity, bool, error) {
	if token == "" {
		return Identity{}, false, nil
	}
	b, err := r.rdb.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("load session: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return Identity{}, false, fmt.Errorf("decode session: %w", err)
	}
	return id, true, nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
