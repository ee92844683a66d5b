// Package cache holds the Redis-backed TTL cache for read views and the
// redemption ledger for gate tokens.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under keys derived from a tag and key parts.
// A Cache without a client is valid: every Get misses and writes are
// dropped.
type Cache struct {
	rdb *redis.Client
}

// New returns a Cache backed by rdb, which may be nil.
func New(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

// Key builds "tag:h1:h2..." where each h is the hex xxhash of one part.
// Booleans hash as 0/1 and every other value as its decimal or %v form.
func Key(tag string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(tag)
	for _, p := range parts {
		var s string
		switch v := p.(type) {
		case string:
			s = v
		case bool:
			s = "0"
			if v {
				s = "1"
			}
		case uint64:
			s = strconv.FormatUint(v, 10)
		case int:
			s = strconv.Itoa(v)
		default:
			s = fmt.Sprint(v)
		}
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(xxhash.Sum64String(s), 16))
	}
	return b.String()
}

// Get decodes the cached value into dst.  It reports false on a miss.
func (c *Cache) Get(ctx context.Context, tag string, dst interface{}, parts ...interface{}) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, Key(tag, parts...)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", tag, err)
	}
	return true, nil
}

// Put stores value as JSON for ttl (0 means no expiry).
func (c *Cache) Put(ctx context.Context, tag string, value interface{}, ttl time.Duration, parts ...interface{}) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(tag, parts...), raw, ttl).Err()
}

// Delete removes the value stored for tag and parts.
func (c *Cache) Delete(ctx context.Context, tag string, parts ...interface{}) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, Key(tag, parts...)).Err()
}
