package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	pgclient "github.com/smppgw/gateway/internal/clients/postgres"
	redisclient "github.com/smppgw/gateway/internal/clients/redis"
	"github.com/smppgw/gateway/internal/cache"
	"github.com/smppgw/gateway/internal/env"
	"github.com/smppgw/gateway/internal/health"
	"github.com/smppgw/gateway/internal/store"
)

// runHealthcheck probes the cache and, if enabled, the store, with a short
// bounded timeout and no connection retries: this is a single-shot CLI
// probe, not the long-lived service.
func runHealthcheck() error {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to load %s configuration: %w", svcName, err)
	}

	redisClient, err := redisclient.Connect(cfg.CacheURL)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer redisClient.Close()

	hlrCache := cache.New(redisClient, cfg.CacheTTL, newLogger(cfg.LogLevel))

	var healthStore health.Store
	if cfg.DBEnabled {
		dbConfig := pgclient.Config{Name: defDBName}
		if err := env.Parse(&dbConfig, env.Options{Prefix: envPrefixDB}); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		db, err := pgclient.Connect(dbConfig)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer db.Close()
		healthStore = store.New(store.NewDatabase(db, trace.NewNoopTracerProvider().Tracer(svcName)))
	}

	checker := health.New(hlrCache, healthStore)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return checker.Check(ctx)
}
