package cache_test

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppgw/gateway/internal/cache"
	"github.com/smppgw/gateway/internal/hlr"
)

var client *redis.Client

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not connect to docker: %s", err)
	}

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start container: %s", err)
	}

	port := container.GetPort("6379/tcp")

	if err := pool.Retry(func() error {
		client = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("localhost:%s", port)})
		return client.Ping(context.Background()).Err()
	}); err != nil {
		log.Fatalf("could not connect to redis: %s", err)
	}

	code := m.Run()

	client.Close()
	if err := pool.Purge(container); err != nil {
		log.Fatalf("could not purge container: %s", err)
	}

	os.Exit(code)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSetGetRoundTrip(t *testing.T) {
	c := cache.New(client, time.Minute, testLogger())
	ctx := context.Background()

	rec := hlr.Record{Number: "13476841841", Error: 0, Status: 0, Classification: hlr.Valid}
	c.Set(ctx, "13476841841", rec)

	got, ok := c.Get(ctx, "13476841841")
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestGetMiss(t *testing.T) {
	c := cache.New(client, time.Minute, testLogger())
	_, ok := c.Get(context.Background(), "does-not-exist")
	assert.False(t, ok)
}

func TestZeroTTLDisablesCache(t *testing.T) {
	c := cache.New(client, 0, testLogger())
	ctx := context.Background()

	c.Set(ctx, "40722570240999", hlr.Record{Number: "40722570240999"})
	_, ok := c.Get(ctx, "40722570240999")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := cache.New(client, 50*time.Millisecond, testLogger())
	ctx := context.Background()

	c.Set(ctx, "15551234567", hlr.Record{Number: "15551234567"})
	_, ok := c.Get(ctx, "15551234567")
	require.True(t, ok)

	time.Sleep(150 * time.Millisecond)
	_, ok = c.Get(ctx, "15551234567")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := cache.New(client, time.Minute, testLogger())
	ctx := context.Background()

	c.Set(ctx, "15557654321", hlr.Record{Number: "15557654321"})
	c.Delete(ctx, "15557654321")

	_, ok := c.Get(ctx, "15557654321")
	assert.False(t, ok)
}
