package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/sys"
)

// errMiss is returned by a store when the key is absent or expired.
var errMiss = errors.New("cache: miss")

// errNoScanner is reported when an operation needs server-side key enumeration and
// only the in-memory fallback is available.
var errNoScanner = errors.New("cache: key enumeration requires a redis connection")

// store is the key/value contract shared by the redis backend and the in-memory
// fallback. Keys are always fully namespaced.
type store interface {
	name() string
	get(ctx context.Context, key string) sys.Result[[]byte]
	set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	del(ctx context.Context, keys ...string) sys.Result[int64]
	exists(ctx context.Context, key string) sys.Result[bool]
	incr(ctx context.Context, key string, delta int64, ttl time.Duration) sys.Result[int64]
	close() error
}

// scanner is implemented by stores that can enumerate keys on the server.
type scanner interface {
	scan(ctx context.Context, pattern string) sys.Result[[]string]
	ping(ctx context.Context) error
}

// Metrics receives cache outcome events.
type Metrics interface {
	Hit()
	Miss()
	Error(op string)
}

type noopMetrics struct{}

func (noopMetrics) Hit()         {}
func (noopMetrics) Miss()        {}
func (noopMetrics) Error(string) {}

// config holds the resolved options for the facade, the local cache and the
// in-memory store.
type config struct {
	codec        Codec
	metrics      Metrics
	singleFlight bool
	expiryCheck  time.Duration
	now          func() time.Time
}

// Option configures the caches in this package.
type Option func(*config)

func defaultConfig() config {
	return config{
		codec:       JSONCodec{},
		metrics:     noopMetrics{},
		expiryCheck: time.Minute,
		now:         time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithCodec sets the payload codec. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.codec = c
		}
	}
}

// WithMetrics sets the sink for hit, miss and error events.
func WithMetrics(m Metrics) Option {
	return func(cfg *config) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithSingleFlight coalesces concurrent GetOrSet misses on the same key so the
// factory runs once per key at a time. Off by default.
func WithSingleFlight() Option {
	return func(cfg *config) { cfg.singleFlight = true }
}

// WithExpiryCheck sets the interval of the background sweep for expired entries in
// the in-memory store and the local cache. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.expiryCheck = d
		}
	}
}

// WithClock overrides the time source of the in-memory store and the local cache.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}
