package resolver_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppgw/gateway/internal/hlr"
	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/resolver"
	"github.com/smppgw/gateway/internal/store"
	gwerrors "github.com/smppgw/gateway/pkg/errors"
)

type fakeCache struct {
	mu    sync.Mutex
	data  map[string]hlr.Record
	gets  int32
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]hlr.Record)}
}

func (f *fakeCache) Get(_ context.Context, msisdn string) (hlr.Record, bool) {
	atomic.AddInt32(&f.gets, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.data[msisdn]
	return rec, ok
}

func (f *fakeCache) Set(_ context.Context, msisdn string, rec hlr.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[msisdn] = rec
}

type fakeStore struct {
	mu   sync.Mutex
	rows []store.Row
}

func (f *fakeStore) Append(_ context.Context, row store.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestLookupCacheHitSkipsHTTP(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newFakeCache()
	c.Set(context.Background(), "13476841841", hlr.Record{Number: "13476841841", Classification: hlr.Valid})

	r := resolver.New(resolver.Config{BaseURL: srv.URL, Timeout: time.Second}, c, nil, metrics.New(), testLogger())

	rec, err := r.Lookup(context.Background(), "13476841841", "")
	require.NoError(t, err)
	assert.Equal(t, hlr.Valid, rec.Classification)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestLookupClassifiesAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]hlr.Record{
			"40722570240999": {Number: "40722570240999", Error: 1, Status: 1},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newFakeCache()
	st := &fakeStore{}
	r := resolver.New(resolver.Config{BaseURL: srv.URL, Timeout: time.Second}, c, st, metrics.New(), testLogger())

	rec, err := r.Lookup(context.Background(), "40722570240999", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, hlr.Invalid, rec.Classification)

	cached, ok := c.Get(context.Background(), "40722570240999")
	require.True(t, ok)
	assert.Equal(t, hlr.Invalid, cached.Classification)

	time.Sleep(50 * time.Millisecond)
	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.rows, 1)
	assert.Equal(t, "40722570240999", st.rows[0].MSISDN)
}

func TestLookupEmptyResponseSynthesized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newFakeCache()
	r := resolver.New(resolver.Config{BaseURL: srv.URL, Timeout: time.Second}, c, nil, metrics.New(), testLogger())

	rec, err := r.Lookup(context.Background(), "19999999999", "")
	require.NoError(t, err)
	assert.Equal(t, hlr.Invalid, rec.Classification)
	assert.Equal(t, 1, rec.Error)
	assert.Equal(t, 1, rec.Status)
}

func TestLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := newFakeCache()
	r := resolver.New(resolver.Config{BaseURL: srv.URL, Timeout: 10 * time.Millisecond}, c, nil, metrics.New(), testLogger())

	_, err := r.Lookup(context.Background(), "15550001111", "")
	require.Error(t, err)
	assert.True(t, gwerrors.Contains(err, resolver.ErrHLRTimeout))
}

func TestLookupCollapsesConcurrentMisses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		resp := map[string]hlr.Record{
			"13476841841": {Number: "13476841841", Error: 0, Status: 0},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newFakeCache()
	r := resolver.New(resolver.Config{BaseURL: srv.URL, Timeout: time.Second}, c, nil, metrics.New(), testLogger())

	const n = 20
	var wg sync.WaitGroup
	results := make([]hlr.Record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := r.Lookup(context.Background(), "13476841841", "")
			require.NoError(t, err)
			results[i] = rec
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, rec := range results {
		assert.Equal(t, hlr.Valid, rec.Classification)
	}
}
