// Package cache adapts a Redis connection pool to the byte-blob get/set
// with TTL contract CacheEntry needs (spec §3, §4.5 step 3/5). It is the
// one piece of state explicitly called out as a shared mutual-exclusion
// gate in spec §5 and §9: every operation acquires a pooled connection,
// performs one round-trip, and releases it.
package cache

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/datawire/dlib/dlog"
)

// Cache is a pooled Redis client. A nil *Cache is valid and behaves as "no
// cache configured" (SPEC_FULL §4.9): callers should check for nil before
// calling Get/Set, matching DNSFrontEnd's pipeline steps 3 and 5.
type Cache struct {
	pool *redis.Pool
}

// New dials lazily against addr (host:port) using a small connection pool.
func New(addr string) *Cache {
	return &Cache{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
	}
}

// Close releases pooled connections.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.pool.Close()
}

// Get returns the stored blob for key, or ok=false if absent. Any error is
// logged and treated as a miss — per spec §7d, cache errors never affect
// the reply.
func (c *Cache) Get(ctx context.Context, key string) (val []byte, ok bool) {
	conn := c.pool.Get()
	defer conn.Close()

	b, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if err != redis.ErrNil {
			dlog.Warnf(ctx, "cache get %q: %v", key, err)
		}
		return nil, false
	}
	return b, true
}

// Set stores val under key with the given TTL. Errors are logged and
// swallowed (spec §7d).
func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	conn := c.pool.Get()
	defer conn.Close()

	secs := int(ttl / time.Second)
	if secs <= 0 {
		secs = 1
	}
	if _, err := conn.Do("SETEX", key, secs, val); err != nil {
		dlog.Warnf(ctx, "cache set %q: %v", key, err)
	}
}
