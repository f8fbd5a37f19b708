// Package cache provides a Redis-backed key-value gateway shared by the
// recommendation pipeline. Absent keys and transport failures surface as
// distinct errors so callers can tell "no value" from "store is down".
package cache

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	maxRetries      = 3
	minRetryBackoff = 50 * time.Millisecond
	maxRetryBackoff = 2 * time.Second
)

var (
	// ErrCacheMiss is returned by Get when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrStoreUnavailable signals a transport-level failure. Readers must
	// treat it as a miss and recompute; writers treat writes as best-effort.
	ErrStoreUnavailable = errors.New("cache store unavailable")
)

// Gateway wraps a Redis client with the error taxonomy the services expect.
type Gateway struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection with a ping.
// The client retries dropped commands with capped exponential backoff.
func New(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Gateway, error) {
	var dials atomic.Int64
	rdb := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		MaxRetries:      maxRetries,
		MinRetryBackoff: minRetryBackoff,
		MaxRetryBackoff: maxRetryBackoff,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if dials.Add(1) > 1 {
				logger.Info("reconnecting to redis", zap.String("addr", addr))
			}
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		},
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			logger.Info("connected to redis", zap.String("addr", addr))
			return nil
		},
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	logger.Info("redis is ready", zap.String("addr", addr))

	return &Gateway{rdb: rdb, logger: logger}, nil
}

// Close shuts down the underlying connection pool.
func (g *Gateway) Close() error {
	g.logger.Info("closing redis connection")
	return g.rdb.Close()
}

// Get returns the value under key, ErrCacheMiss when the key is absent
// or expired, and ErrStoreUnavailable on transport failure.
func (g *Gateway) Get(ctx context.Context, key string) (string, error) {
	val, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		g.logger.Error("redis GET failed", zap.String("key", key), zap.Error(err))
		return "", errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return val, nil
}

// Set writes value under key. A ttl of zero or less means no expiry.
func (g *Gateway) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := g.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		g.logger.Error("redis SET failed", zap.String("key", key), zap.Error(err))
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		g.logger.Error("redis DEL failed", zap.String("key", key), zap.Error(err))
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Exists reports whether key is present.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, key).Result()
	if err != nil {
		g.logger.Error("redis EXISTS failed", zap.String("key", key), zap.Error(err))
		return false, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return n == 1, nil
}

// Incr atomically increments the integer value under key.
func (g *Gateway) Incr(ctx context.Context, key string) (int64, error) {
	n, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		g.logger.Error("redis INCR failed", zap.String("key", key), zap.Error(err))
		return 0, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return n, nil
}

// ZAdd adds member with score to the sorted set under key.
func (g *Gateway) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := g.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		g.logger.Error("redis ZADD failed", zap.String("key", key), zap.Error(err))
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

// ZRange returns members of the sorted set under key between start and stop.
func (g *Gateway) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := g.rdb.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		g.logger.Error("redis ZRANGE failed", zap.String("key", key), zap.Error(err))
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return members, nil
}

// HSet sets field to value in the hash under key.
func (g *Gateway) HSet(ctx context.Context, key, field, value string) error {
	if err := g.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		g.logger.Error("redis HSET failed", zap.String("key", key), zap.Error(err))
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

// HGet returns the value of field in the hash under key.
func (g *Gateway) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := g.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		g.logger.Error("redis HGET failed", zap.String("key", key), zap.Error(err))
		return "", errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return val, nil
}

// HGetAll returns all fields of the hash under key.
func (g *Gateway) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := g.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		g.logger.Error("redis HGETALL failed", zap.String("key", key), zap.Error(err))
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return fields, nil
}

// FlushAll clears the entire store.
func (g *Gateway) FlushAll(ctx context.Context) error {
	if err := g.rdb.FlushAll(ctx).Err(); err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	g.logger.Info("redis flushed")
	return nil
}

