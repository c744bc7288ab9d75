package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmerRunOnce(t *testing.T) {
	dist, _, _ := newRedisFacade(t)
	log := logger.NewTestLogger()
	settings := DefaultSettings()
	local := NewLocal(context.Background(), settings, log)
	defer local.Close()

	w := NewWarmer(dist, local, settings, log)
	w.Register("categories", time.Hour, func(context.Context) (any, error) {
		return []string{"lighting", "rugs"}, nil
	})
	w.Register("featured", 0, func(context.Context) (any, error) {
		return nil, errors.New("catalog unavailable")
	})

	ctx := context.Background()
	assert.Equal(t, 1, w.RunOnce(ctx))

	cats, ok := Get[[]string](ctx, dist, "categories")
	require.True(t, ok)
	assert.Equal(t, []string{"lighting", "rugs"}, cats)
	assert.False(t, dist.Exists(ctx, "featured"))
	assert.True(t, local.Exists("categories"))

	errs := log.Entries("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "error warming up key")
	assert.NotEmpty(t, errs[0].Metadata["run"])
}

func TestWarmerRegisterFeedsLocalWarmUp(t *testing.T) {
	dist, _ := newMemoryFacade(t)
	settings := DefaultSettings()
	settings.EnableCacheWarming = true
	settings.CacheWarmupKeys = []string{"categories"}
	log := logger.NewTestLogger()
	local := NewLocal(context.Background(), settings, log)
	defer local.Close()

	w := NewWarmer(dist, local, settings, log)
	w.Register("categories", 0, func(context.Context) (any, error) { return 3, nil })
	assert.Equal(t, 1, local.WarmUp(context.Background()))
}

func TestWarmerRunOnceWithoutLocal(t *testing.T) {
	dist, _ := newMemoryFacade(t)
	w := NewWarmer(dist, nil, DefaultSettings(), logger.NewTestLogger())
	w.Register("k", 0, func(context.Context) (any, error) { return "v", nil })
	assert.Equal(t, 1, w.RunOnce(context.Background()))
	v, ok := Get[string](context.Background(), dist, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestWarmerRun(t *testing.T) {
	dist, _ := newMemoryFacade(t)
	settings := DefaultSettings()
	settings.EnableCacheWarming = true
	settings.WarmupDelay = "10ms"
	settings.WarmupInterval = "20ms"

	var runs atomic.Int32
	w := NewWarmer(dist, nil, settings, logger.NewTestLogger())
	w.Register("k", 0, func(context.Context) (any, error) {
		return runs.Add(1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("warmer did not stop")
	}
}

func TestWarmerRunDisabled(t *testing.T) {
	dist, _ := newMemoryFacade(t)
	var runs atomic.Int32
	w := NewWarmer(dist, nil, DefaultSettings(), logger.NewTestLogger())
	w.Register("k", 0, func(context.Context) (any, error) {
		runs.Add(1)
		return 1, nil
	})
	// returns without blocking
	w.Run(context.Background())
	assert.Zero(t, runs.Load())
}

func TestWarmerRunInvalidInterval(t *testing.T) {
	dist, _ := newMemoryFacade(t)
	settings := DefaultSettings()
	settings.EnableCacheWarming = true
	settings.WarmupInterval = "often"
	log := logger.NewTestLogger()
	NewWarmer(dist, nil, settings, log).Run(context.Background())
	assert.Len(t, log.Entries("ERROR"), 1)
}
