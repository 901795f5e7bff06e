package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	chclient "github.com/mainflux/callhome/pkg/client"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	jaegerclient "github.com/smppgw/gateway/internal/clients/jaeger"
	pgclient "github.com/smppgw/gateway/internal/clients/postgres"
	redisclient "github.com/smppgw/gateway/internal/clients/redis"
	"github.com/smppgw/gateway/internal/cache"
	"github.com/smppgw/gateway/internal/env"
	"github.com/smppgw/gateway/internal/health"
	"github.com/smppgw/gateway/internal/hlr"
	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/pipeline"
	"github.com/smppgw/gateway/internal/resolver"
	"github.com/smppgw/gateway/internal/server"
	httpserver "github.com/smppgw/gateway/internal/server/http"
	smppserver "github.com/smppgw/gateway/internal/server/smpp"
	"github.com/smppgw/gateway/internal/session"
	"github.com/smppgw/gateway/internal/store"
	"github.com/smppgw/gateway/internal/telemetry"
	"github.com/smppgw/gateway/internal/transport"
)

const version = "0.1.0"

func runServer() error {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to load %s configuration: %w", svcName, err)
	}

	logger := newLogger(cfg.LogLevel)

	if cfg.InstanceID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			logger.Error(fmt.Sprintf("failed to generate instance id: %s", err))
			return err
		}
		cfg.InstanceID = id.String()
	}

	cc, err := loadComponentConfigs()
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load %s configuration: %s", svcName, err))
		return err
	}

	tp, err := jaegerclient.NewProvider(ctx, svcName, cfg.JaegerURL, cfg.InstanceID, cfg.TraceRatio)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to init tracing: %s", err))
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("error shutting down tracer provider: %s", err))
		}
	}()
	tracer := tp.Tracer(svcName)

	m := metrics.New()

	redisClient, err := connectRedis(ctx, cfg.CacheURL, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to connect to cache: %s", err))
		return err
	}
	defer redisClient.Close()

	hlrCache := cache.New(redisClient, cfg.CacheTTL, logger)
	m.RedisConnectionPoolSize.Set(float64(redisClient.Options().PoolSize))

	var resolverStore resolver.Store
	var healthStore health.Store
	if cfg.DBEnabled {
		db, err := connectDB(logger)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to connect to store: %s", err))
			return err
		}
		defer db.Close()

		database := store.NewDatabase(db, tracer)
		rawStore := store.New(database)
		healthStore = rawStore
		resolverStore = store.NewTracingMiddleware(tracer, rawStore)

		if cfg.WarmupEnabled {
			warmup(ctx, rawStore, hlrCache, cfg.WarmupDays, cfg.WarmupLimit, logger)
		}
	}

	checker := health.New(hlrCache, healthStore)

	res := resolver.New(cc.resolver, hlrCache, resolverStore, m, logger)
	lookupper := resolver.NewTracingMiddleware(tracer, res)

	pl := pipeline.New(cc.pipeline, lookupper, m, logger)

	newSession := func(conn net.Conn) *session.Session {
		return session.New(conn, cc.session, pl, m, logger)
	}

	smppSrv := smppserver.New(ctx, cancel, svcName, cc.smppServer, newSession, logger)
	metricsSrv := httpserver.New(ctx, cancel, svcName+"-metrics", cc.metricsServer, transport.NewHandler(m, checker), logger)

	if cfg.SendTelemetry {
		chc := chclient.New(svcName, version, telemetry.NewHomeLogger(logger), cancel)
		go chc.CallHome(ctx)
	}

	g.Go(func() error {
		return smppSrv.Start()
	})
	g.Go(func() error {
		return metricsSrv.Start()
	})
	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, smppSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
		return err
	}
	return nil
}

func loadComponentConfigs() (componentConfigs, error) {
	var cc componentConfigs

	cc.smppServer = server.Config{Host: "0.0.0.0", Port: defSMPPPort}
	if err := env.Parse(&cc.smppServer, env.Options{Prefix: envPrefixSMPP}); err != nil {
		return cc, fmt.Errorf("smpp server: %w", err)
	}

	cc.metricsServer = server.Config{Host: "0.0.0.0", Port: defMetricsPort}
	if err := env.Parse(&cc.metricsServer, env.Options{Prefix: envPrefixMetrics}); err != nil {
		return cc, fmt.Errorf("metrics server: %w", err)
	}

	if err := env.Parse(&cc.session); err != nil {
		return cc, fmt.Errorf("session: %w", err)
	}

	if err := env.Parse(&cc.resolver); err != nil {
		return cc, fmt.Errorf("resolver: %w", err)
	}

	if err := env.Parse(&cc.pipeline); err != nil {
		return cc, fmt.Errorf("pipeline: %w", err)
	}

	return cc, nil
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger) (*redis.Client, error) {
	var client *redis.Client
	operation := func() error {
		c, err := redisclient.Connect(url)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx).Err(); err != nil {
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn(fmt.Sprintf("cache connect failed, retrying in %s: %s", wait, err))
	}
	if err := backoff.RetryNotify(operation, connectBackoff(), notify); err != nil {
		return nil, err
	}
	return client, nil
}

func connectDB(logger *slog.Logger) (*sqlx.DB, error) {
	dbConfig := pgclient.Config{Name: defDBName}
	if err := env.Parse(&dbConfig, env.Options{Prefix: envPrefixDB}); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var db *sqlx.DB
	operation := func() error {
		conn, err := pgclient.Setup(dbConfig, *store.Migration())
		if err != nil {
			return err
		}
		db = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn(fmt.Sprintf("store connect failed, retrying in %s: %s", wait, err))
	}
	if err := backoff.RetryNotify(operation, connectBackoff(), notify); err != nil {
		return nil, err
	}
	return db, nil
}

func connectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// warmup pre-populates the cache from the most recent distinct lookups so
// that a freshly started gateway does not start every MSISDN cold. Failure
// is logged and otherwise ignored, per the startup contract: warmup never
// blocks the gateway from serving traffic.
func warmup(ctx context.Context, st *store.Store, c *cache.Cache, days, limit int, logger *slog.Logger) {
	rows, err := st.RecentUnique(ctx, days, limit)
	if err != nil {
		logger.Warn(fmt.Sprintf("warmup scan failed, continuing cold: %s", err))
		return
	}

	populated := 0
	for _, row := range rows {
		var rec hlr.Record
		if err := json.Unmarshal(row.HLRResponse, &rec); err != nil {
			continue
		}
		c.Set(ctx, row.MSISDN, rec)
		populated++
	}
	logger.Info(fmt.Sprintf("warmup populated %d cache entries", populated))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
