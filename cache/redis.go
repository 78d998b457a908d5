package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/xraph/steward"
)

// Compile-time interface check.
var _ steward.Cache = (*Redis)(nil)

const defaultRedisPrefix = "steward:exists"

// Redis caches exists results in Redis so several engine replicas share
// invalidations. Each domain instance is one hash of "user|action" fields,
// and each user has a set naming the instance hashes that hold their
// entries. Redis failures are logged and read as misses.
type Redis struct {
	client red.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets how long an instance hash lives after its last write.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if p := strings.TrimSpace(prefix); p != "" {
			r.prefix = p
		}
	}
}

// WithLogger sets the logger used for Redis errors.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis wires a Redis client into an exists cache.
func NewRedis(client red.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a cached exists result.
func (r *Redis) Get(ctx context.Context, key steward.CheckKey) (allowed, ok bool) {
	v, err := r.client.HGet(ctx, r.instanceKey(key.DomainID, key.InstanceID), field(key)).Result()
	if err != nil {
		if !errors.Is(err, red.Nil) {
			r.logError("redis get exists", err)
		}
		return false, false
	}
	return v == "1", true
}

// Set stores an exists result.
func (r *Redis) Set(ctx context.Context, key steward.CheckKey, allowed bool) {
	v := "0"
	if allowed {
		v = "1"
	}
	ik := r.instanceKey(key.DomainID, key.InstanceID)
	uk := r.userKey(key.UserID)
	_, err := r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.HSet(ctx, ik, field(key), v)
		pipe.Expire(ctx, ik, r.ttl)
		pipe.SAdd(ctx, uk, ik)
		pipe.Expire(ctx, uk, r.ttl)
		return nil
	})
	if err != nil {
		r.logError("redis set exists", err)
	}
}

// InvalidateInstance removes all cached results for a domain instance.
func (r *Redis) InvalidateInstance(ctx context.Context, domainID, instanceID string) {
	if err := r.client.Del(ctx, r.instanceKey(domainID, instanceID)).Err(); err != nil {
		r.logError("redis invalidate instance", err)
	}
}

// InvalidateUser removes all cached results for a user. Other users'
// entries on the same instances are dropped with them.
func (r *Redis) InvalidateUser(ctx context.Context, userID string) {
	uk := r.userKey(userID)
	keys, err := r.client.SMembers(ctx, uk).Result()
	if err != nil {
		r.logError("redis list user instances", err)
		return
	}
	if err := r.client.Del(ctx, append(keys, uk)...).Err(); err != nil {
		r.logError("redis invalidate user", err)
	}
}

func (r *Redis) instanceKey(domainID, instanceID string) string {
	return fmt.Sprintf("%s:i:%s:%s", r.prefix, domainID, instanceID)
}

func (r *Redis) userKey(userID string) string {
	return fmt.Sprintf("%s:u:%s", r.prefix, userID)
}

func field(key steward.CheckKey) string {
	return key.UserID + "|" + key.Action
}

func (r *Redis) logError(op string, err error) {
	r.logger.Warn("exists cache error",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
