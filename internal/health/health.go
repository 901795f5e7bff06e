// Package health implements the gateway's single health probe: cache
// reachability, and store reachability when the store is enabled. Both the
// HTTP /healthz endpoint and the CLI healthcheck subcommand share it.
package health

import (
	"context"
	"fmt"
)

// Cache is the slice of the cache the health check pings.
type Cache interface {
	Ping(ctx context.Context) error
}

// Store is the slice of the store the health check pings.
type Store interface {
	Ping(ctx context.Context) error
}

// Checker probes the gateway's durable dependencies.
type Checker struct {
	cache Cache
	store Store // nil when the store is disabled
}

// New builds a Checker. store may be nil when the durable store is
// disabled by configuration.
func New(cache Cache, store Store) *Checker {
	return &Checker{cache: cache, store: store}
}

// Check returns nil iff the cache (and, if enabled, the store) are
// reachable.
func (c *Checker) Check(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache unreachable: %w", err)
	}
	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
	}
	return nil
}
