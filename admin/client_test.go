package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAgainstServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.dist.Set(ctx, "user:1", 1, 0)
	f.local.Set("user:1", 1, 0, "")

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	client := NewClient(logger.NewTestLogger(), srv.URL, testToken)

	h, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Healthy", h.Status)

	st, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalKeys)

	keys, err := client.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	rs, err := client.Redis(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, rs.SampleKeys)

	d, err := client.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, d.Redis.IsConnected)

	msg, err := client.Clear(ctx, "user:")
	require.NoError(t, err)
	assert.Equal(t, "Cache cleared for prefix 'user:' successfully", msg)
	assert.Empty(t, f.dist.Keys(ctx, ""))

	msg, err = client.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Cache cleared successfully", msg)

	res, err := client.WarmUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cache warmup initiated successfully", res.Message)
}

func TestClientUnauthorized(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	_, err := NewClient(logger.NewTestLogger(), srv.URL, "").Statistics(context.Background())
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, err.Error(), ErrMissingToken.Error())
}

func TestClientRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Health{Status: "Healthy"})
	}))
	defer srv.Close()

	client := NewClient(logger.NewTestLogger(), srv.URL, "")
	client.backoff = time.Millisecond
	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Healthy", h.Status)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(logger.NewTestLogger(), srv.URL, "")
	client.backoff = time.Millisecond
	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.EqualValues(t, defaultRetries+1, calls.Load())
}

func TestClientURLJoin(t *testing.T) {
	c := NewClient(logger.NewTestLogger(), "http://localhost:8081/admin/", "")
	u, err := c.url(BasePath + "/cache")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/admin/api/performance/cache", u)
}
