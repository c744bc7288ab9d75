package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	c.mutex.Unlock()
}

func newTestMemoryStore(t *testing.T, opts ...Option) *memoryStore {
	t.Helper()
	s := newMemoryStore(context.Background(), applyOptions(opts))
	t.Cleanup(func() { s.close() })
	return s
}

func TestMemoryStoreGetSetDel(t *testing.T) {
	clock := newFakeClock()
	s := newTestMemoryStore(t, WithClock(clock.Now))
	ctx := context.Background()

	r := s.get(ctx, "a")
	assert.True(t, r.IsErr(errMiss))

	require.NoError(t, s.set(ctx, "a", []byte("1"), time.Second))
	r = s.get(ctx, "a")
	require.True(t, r.IsOk())
	assert.Equal(t, []byte("1"), r.Ok)

	// returned bytes are a copy
	r.Ok[0] = 'x'
	assert.Equal(t, []byte("1"), s.get(ctx, "a").Ok)

	clock.Advance(time.Second)
	assert.True(t, s.get(ctx, "a").IsErr(errMiss))
	assert.False(t, s.exists(ctx, "a").Ok)

	require.NoError(t, s.set(ctx, "b", []byte("2"), time.Minute))
	assert.EqualValues(t, 1, s.del(ctx, "b", "missing").Ok)
	assert.EqualValues(t, 0, s.del(ctx).Ok)
}

func TestMemoryStoreIncr(t *testing.T) {
	clock := newFakeClock()
	s := newTestMemoryStore(t, WithClock(clock.Now))
	ctx := context.Background()

	assert.EqualValues(t, 5, s.incr(ctx, "n", 5, time.Minute).Ok)
	clock.Advance(30 * time.Second)
	assert.EqualValues(t, 3, s.incr(ctx, "n", -2, time.Minute).Ok)

	// the ttl is only applied on creation
	clock.Advance(31 * time.Second)
	assert.EqualValues(t, 1, s.incr(ctx, "n", 1, time.Minute).Ok)

	require.NoError(t, s.set(ctx, "s", []byte(`"abc"`), time.Minute))
	assert.True(t, s.incr(ctx, "s", 1, time.Minute).IsErr())
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := newFakeClock()
	s := newTestMemoryStore(t, WithClock(clock.Now), WithExpiryCheck(5*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, s.set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, s.set(ctx, "b", []byte("1"), time.Hour))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		return len(s.entries) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	s := newMemoryStore(context.Background(), applyOptions(nil))
	assert.NoError(t, s.close())
	assert.NoError(t, s.close())
}
