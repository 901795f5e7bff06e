// Package cache is the TTL'd MSISDN→record cache the HLR resolver
// consults before calling out to the HLR provider. Every operation is
// best-effort: a backend outage degrades to a cache miss rather than
// failing the caller, since the submit path must never depend on the
// cache being up.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smppgw/gateway/internal/hlr"
)

const keyPrefix = "hlr:"

// Cache wraps a redis client with the gateway's key scheme and TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a Cache. A ttl of zero disables both Get and Set, turning
// every lookup into a guaranteed miss with no round trip to redis.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func key(msisdn string) string {
	return keyPrefix + msisdn
}

// Get returns the cached record for msisdn, if present and unexpired.
func (c *Cache) Get(ctx context.Context, msisdn string) (hlr.Record, bool) {
	if c.ttl <= 0 {
		return hlr.Record{}, false
	}

	raw, err := c.client.Get(ctx, key(msisdn)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("hlr cache get failed, degrading to miss", "msisdn", msisdn, "error", err)
		}
		return hlr.Record{}, false
	}

	var rec hlr.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("hlr cache entry unreadable, degrading to miss", "msisdn", msisdn, "error", err)
		return hlr.Record{}, false
	}

	return rec, true
}

// Set stores rec for msisdn with the configured TTL.
func (c *Cache) Set(ctx context.Context, msisdn string, rec hlr.Record) {
	if c.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("hlr cache encode failed", "msisdn", msisdn, "error", err)
		return
	}

	if err := c.client.Set(ctx, key(msisdn), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("hlr cache set failed", "msisdn", msisdn, "error", err)
	}
}

// Delete evicts msisdn's cache entry, if any.
func (c *Cache) Delete(ctx context.Context, msisdn string) {
	if err := c.client.Del(ctx, key(msisdn)).Err(); err != nil {
		c.logger.Warn("hlr cache delete failed", "msisdn", msisdn, "error", err)
	}
}

// Ping reports whether the cache backend is reachable. Unlike Get/Set/Delete,
// it returns the error rather than degrading, since it backs the healthcheck.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
