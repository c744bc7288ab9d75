package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
	"github.com/decorstore/cachekit/sys"
	"golang.org/x/sync/singleflight"
)

// Distributed is the cache facade used by request handlers. Every operation is
// best effort: backend and decoding failures are logged and turned into the
// operation's zero value, never returned.
type Distributed struct {
	store    store
	scanner  scanner
	keys     Namespacer
	settings Settings
	cfg      config
	group    singleflight.Group
	logger   logger.Logger
}

// NewRedisDistributed returns a facade backed by the shared redis connector.
func NewRedisDistributed(conn *Connector, settings Settings, log logger.Logger, opts ...Option) *Distributed {
	rs := newRedisStore(conn)
	d := newDistributed(rs, settings, log, opts)
	d.scanner = rs
	return d
}

// NewMemoryDistributed returns a facade backed by a process-local store. Pattern
// removal, Clear and key listing are unavailable and degrade to no-ops.
func NewMemoryDistributed(ctx context.Context, settings Settings, log logger.Logger, opts ...Option) *Distributed {
	cfg := applyOptions(opts)
	return newDistributed(newMemoryStore(ctx, cfg), settings, log, opts)
}

func newDistributed(st store, settings Settings, log logger.Logger, opts []Option) *Distributed {
	return &Distributed{
		store:    st,
		keys:     NewNamespacer(settings.CacheKeyPrefix),
		settings: settings,
		cfg:      applyOptions(opts),
		logger:   log.WithPrefix("[distributed-cache]"),
	}
}

// Open wires a facade from settings: a redis connector when distributed caching is
// enabled and a connection string is present, otherwise the in-memory substitute.
// The returned close func releases the connector and background goroutines.
func Open(ctx context.Context, settings Settings, log logger.Logger, opts ...Option) (*Distributed, func() error, error) {
	codec, err := CodecByName(settings.Codec)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]Option{WithCodec(codec)}, opts...)
	if !settings.UseRedis() {
		log.Info("redis is not configured, using the in-memory distributed cache")
		d := NewMemoryDistributed(ctx, settings, log, opts...)
		return d, d.Close, nil
	}
	conn, err := NewConnector(ctx, settings, log)
	if err != nil {
		return nil, nil, err
	}
	d := NewRedisDistributed(conn, settings, log, opts...)
	closer := func() error {
		return errors.CombineErrors(d.Close(), conn.Close())
	}
	return d, closer, nil
}

// Backend returns "redis" or "memory".
func (d *Distributed) Backend() string {
	return d.store.name()
}

// Namespacer returns the namespacer used to build backend keys.
func (d *Distributed) Namespacer() Namespacer {
	return d.keys
}

// Close stops background work owned by the facade. It does not close a shared
// Connector.
func (d *Distributed) Close() error {
	return d.store.close()
}

func (d *Distributed) log(field, value string) logger.Logger {
	return logger.WithKV(d.logger, field, value)
}

// fetch returns the raw payload for key. A miss is reported as errMiss.
func (d *Distributed) fetch(ctx context.Context, key string) sys.Result[[]byte] {
	return d.store.get(ctx, d.keys.FullKey(key))
}

func lookup[T any](ctx context.Context, d *Distributed, key string) sys.Result[T] {
	raw := d.fetch(ctx, key)
	if raw.IsErr() {
		return sys.Err[T](raw.Err)
	}
	val, err := decode[T](d.cfg.codec, raw.Ok)
	if err != nil {
		return sys.Err[T](err)
	}
	return sys.Ok(val)
}

// Get returns the value stored under key. The bool is false on a miss, an expired
// entry, a payload that cannot be decoded into T, or a backend failure.
func Get[T any](ctx context.Context, d *Distributed, key string) (T, bool) {
	r := lookup[T](ctx, d, key)
	switch {
	case r.IsOk():
		d.cfg.metrics.Hit()
		return r.Ok, true
	case r.IsErr(errMiss):
		d.cfg.metrics.Miss()
	default:
		d.cfg.metrics.Error("get")
		d.log("key", key).Error("error getting value from distributed cache: %s", r.Err)
	}
	var zero T
	return zero, false
}

// GetBytes returns the raw payload stored under key.
func (d *Distributed) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	r := d.fetch(ctx, key)
	if r.IsOk() {
		d.cfg.metrics.Hit()
		return r.Ok, true
	}
	if r.IsErr(errMiss) {
		d.cfg.metrics.Miss()
	} else {
		d.cfg.metrics.Error("get")
		d.log("key", key).Error("error getting value from distributed cache: %s", r.Err)
	}
	return nil, false
}

// Set stores value under key for ttl. A ttl <= 0 uses DefaultExpirationMinutes.
// Failures are logged only.
func (d *Distributed) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = d.settings.DefaultExpiration()
	}
	data, err := d.cfg.codec.Marshal(value)
	if err != nil {
		d.cfg.metrics.Error("set")
		d.log("key", key).Error("error encoding value for distributed cache: %s", err)
		return
	}
	full := d.keys.FullKey(key)
	if err := d.store.set(ctx, full, data, ttl); err != nil {
		d.cfg.metrics.Error("set")
		d.log("key", key).Error("error setting value in distributed cache: %s", err)
		return
	}
	d.logger.Trace("set distributed cache value for key: %s", full)
}

// Remove deletes key. Removing an absent key is not an error.
func (d *Distributed) Remove(ctx context.Context, key string) {
	full := d.keys.FullKey(key)
	if r := d.store.del(ctx, full); r.IsErr() {
		d.cfg.metrics.Error("remove")
		d.log("key", key).Error("error removing value from distributed cache: %s", r.Err)
		return
	}
	d.logger.Trace("removed distributed cache value for key: %s", full)
}

// Exists reports whether key is present. Without redis it falls back to reading the
// value.
func (d *Distributed) Exists(ctx context.Context, key string) bool {
	full := d.keys.FullKey(key)
	if d.scanner == nil {
		r := d.store.get(ctx, full)
		if r.IsErr() && !r.IsErr(errMiss) {
			d.log("key", key).Error("error checking if key exists in distributed cache: %s", r.Err)
		}
		return r.IsOk() && len(r.Ok) > 0
	}
	r := d.store.exists(ctx, full)
	if r.IsErr() {
		d.cfg.metrics.Error("exists")
		d.log("key", key).Error("error checking if key exists in distributed cache: %s", r.Err)
		return false
	}
	return r.Ok
}

// Factory produces the value for a GetOrSet miss.
type Factory[T any] func(ctx context.Context) (T, error)

// GetOrSet returns the cached value for key, or calls factory, stores its result for
// ttl and returns it. Factory errors are returned and nothing is cached. Concurrent
// misses each call factory unless the facade was built WithSingleFlight.
func GetOrSet[T any](ctx context.Context, d *Distributed, key string, factory Factory[T], ttl time.Duration) (T, error) {
	if val, ok := Get[T](ctx, d, key); ok {
		return val, nil
	}
	load := func() (T, error) {
		val, err := factory(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		d.Set(ctx, key, val, ttl)
		return val, nil
	}
	if !d.cfg.singleFlight {
		return load()
	}
	res, err, _ := d.group.Do(d.keys.FullKey(key), func() (interface{}, error) {
		return load()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	val, _ := res.(T)
	return val, nil
}

// ErrCounterCodec is logged when Increment is used with a codec that cannot read the
// decimal counters redis keeps.
var ErrCounterCodec = errors.New("cache: counters require the json codec")

// SupportsCounters reports whether values written by Increment read back through Get.
// Only the JSON codec decodes redis' decimal counters.
func (d *Distributed) SupportsCounters() bool {
	return d.cfg.codec.Name() == JSONCodec{}.Name()
}

// Increment adds delta to the integer counter at key, creating it with the default
// TTL when absent, and returns the new value. Returns 0 on failure, and without
// touching the backend when the codec cannot read counters.
func (d *Distributed) Increment(ctx context.Context, key string, delta int64) int64 {
	if !d.SupportsCounters() {
		d.cfg.metrics.Error("increment")
		d.log("key", key).Error("error incrementing counter in distributed cache: %s (codec %s)", ErrCounterCodec, d.cfg.codec.Name())
		return 0
	}
	r := d.store.incr(ctx, d.keys.FullKey(key), delta, d.settings.DefaultExpiration())
	if r.IsErr() {
		d.cfg.metrics.Error("increment")
		d.log("key", key).Error("error incrementing counter in distributed cache: %s", r.Err)
		return 0
	}
	return r.Ok
}

// scanKeys returns the full keys matching the logical pattern.
func (d *Distributed) scanKeys(ctx context.Context, pattern string) sys.Result[[]string] {
	if d.scanner == nil {
		return sys.Err[[]string](errNoScanner)
	}
	return d.scanner.scan(ctx, d.keys.Pattern(pattern))
}

// RemoveByPattern deletes every key whose logical name matches the redis glob
// pattern and returns how many were removed. Requires redis.
func (d *Distributed) RemoveByPattern(ctx context.Context, pattern string) int64 {
	if d.scanner == nil {
		d.log("pattern", pattern).Warn("redis connection not available for pattern removal")
		return 0
	}
	removed, err := d.removeMatching(ctx, pattern)
	if err != nil {
		d.cfg.metrics.Error("remove_pattern")
		d.log("pattern", pattern).Error("error removing values by pattern from distributed cache: %s", err)
		return removed
	}
	d.logger.Debug("removed %d distributed cache values matching pattern: %s", removed, d.keys.Pattern(pattern))
	return removed
}

func (d *Distributed) removeMatching(ctx context.Context, pattern string) (int64, error) {
	keys := d.scanKeys(ctx, pattern)
	if keys.IsErr() {
		return 0, keys.Err
	}
	var removed int64
	for start := 0; start < len(keys.Ok); start += scanCount {
		end := min(start+scanCount, len(keys.Ok))
		r := d.store.del(ctx, keys.Ok[start:end]...)
		if r.IsErr() {
			return removed, r.Err
		}
		removed += r.Ok
	}
	return removed, nil
}

// Clear deletes every key in this facade's namespace. Requires redis.
func (d *Distributed) Clear(ctx context.Context) {
	if d.scanner == nil {
		d.logger.Warn("redis connection not available for cache clear")
		return
	}
	removed, err := d.removeMatching(ctx, "*")
	if err != nil {
		d.cfg.metrics.Error("clear")
		d.logger.Error("error clearing distributed cache: %s", err)
		return
	}
	d.logger.Info("cleared %d distributed cache values", removed)
}

// KeysCount returns the number of keys in this facade's namespace. Requires redis.
func (d *Distributed) KeysCount(ctx context.Context) int64 {
	if d.scanner == nil {
		d.logger.Warn("redis connection not available for keys count")
		return 0
	}
	r := d.scanKeys(ctx, "*")
	if r.IsErr() {
		d.cfg.metrics.Error("keys_count")
		d.logger.Error("error getting keys count from distributed cache: %s", r.Err)
		return 0
	}
	return int64(len(r.Ok))
}

// Keys returns the logical keys matching pattern. An empty pattern matches all keys.
// Requires redis.
func (d *Distributed) Keys(ctx context.Context, pattern string) []string {
	if pattern == "" {
		pattern = "*"
	}
	if d.scanner == nil {
		d.log("pattern", pattern).Warn("redis connection not available for key listing")
		return []string{}
	}
	r := d.scanKeys(ctx, pattern)
	if r.IsErr() {
		d.cfg.metrics.Error("keys")
		d.log("pattern", pattern).Error("error getting keys from distributed cache: %s", r.Err)
		return []string{}
	}
	keys := make([]string, len(r.Ok))
	for i, full := range r.Ok {
		keys[i] = d.keys.LogicalKey(full)
	}
	return keys
}

// IsConnected pings redis. Always false for the in-memory substitute.
func (d *Distributed) IsConnected(ctx context.Context) bool {
	if d.scanner == nil {
		return false
	}
	if err := d.scanner.ping(ctx); err != nil {
		d.logger.Error("error checking redis connection: %s", err)
		return false
	}
	return true
}

// Connector returns the redis connector behind the facade, or nil for the
// in-memory substitute.
func (d *Distributed) Connector() *Connector {
	if rs, ok := d.store.(*redisStore); ok {
		return rs.conn
	}
	return nil
}
