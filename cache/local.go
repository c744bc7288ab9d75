package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decorstore/cachekit/logger"
)

// Statistics is a snapshot of the local cache counters.
type Statistics struct {
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	HitRatio      float64 `json:"hitRatio"`
	TotalKeys     int     `json:"totalKeys"`
	KeysWithTags  int     `json:"keysWithTags"`
}

// KeyInfo describes one entry of the local cache.
type KeyInfo struct {
	Key         string    `json:"key"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int64     `json:"accessCount"`
	Tag         string    `json:"tag,omitempty"`
}

// Loader produces the value for a warmup key.
type Loader func(ctx context.Context) (any, error)

type localValue struct {
	object   any
	created  time.Time
	expires  time.Time
	absolute time.Time
	accessed int64
	tag      string
}

// Local is the process-local companion cache. It keeps live Go values (no
// serialization), tracks hit and miss counters for the statistics endpoints, and
// supports prefix and tag invalidation.
type Local struct {
	ctx       context.Context
	cancel    context.CancelFunc
	settings  Settings
	cfg       config
	entries   map[string]*localValue
	loaders   map[string]Loader
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	logger    logger.Logger

	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewLocal returns a Local cache and starts its expiry sweep.
func NewLocal(parent context.Context, settings Settings, log logger.Logger, opts ...Option) *Local {
	ctx, cancel := context.WithCancel(parent)
	l := &Local{
		ctx:      ctx,
		cancel:   cancel,
		settings: settings,
		cfg:      applyOptions(opts),
		entries:  make(map[string]*localValue),
		loaders:  make(map[string]Loader),
		logger:   log.WithPrefix("[local-cache]"),
	}
	l.waitGroup.Add(1)
	go l.run()
	return l
}

func (l *Local) fullKey(key string) string {
	return l.settings.CacheKeyPrefix + ":" + key
}

// lookup returns the live value for a full key and records the access. Caller holds
// the mutex.
func (l *Local) lookup(full string) (*localValue, bool) {
	v, ok := l.entries[full]
	if !ok {
		return nil, false
	}
	now := l.cfg.now()
	if !v.expires.After(now) {
		delete(l.entries, full)
		return nil, false
	}
	v.accessed++
	if sliding := l.settings.SlidingExpiration(); sliding > 0 {
		next := now.Add(sliding)
		if next.After(v.absolute) {
			next = v.absolute
		}
		v.expires = next
	}
	return v, true
}

// LocalGet returns the value under key when present and of type T. Counted in the
// statistics.
func LocalGet[T any](l *Local, key string) (T, bool) {
	l.requests.Add(1)
	l.mutex.Lock()
	v, ok := l.lookup(l.fullKey(key))
	l.mutex.Unlock()
	if ok {
		if typed, ok := v.object.(T); ok {
			l.hits.Add(1)
			return typed, true
		}
	}
	l.misses.Add(1)
	var zero T
	return zero, false
}

// GetOrCreate returns the cached value for key or calls factory and caches the
// result for ttl (DefaultExpirationMinutes when ttl <= 0). When caching is disabled
// factory is always called.
func GetOrCreate[T any](ctx context.Context, l *Local, key string, factory Factory[T], ttl time.Duration) (T, error) {
	if !l.settings.EnableCaching {
		return factory(ctx)
	}
	if val, ok := LocalGet[T](l, key); ok {
		l.logger.Trace("cache hit for key: %s", key)
		return val, nil
	}
	l.logger.Trace("cache miss for key: %s", key)
	val, err := factory(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.Set(key, val, ttl, "")
	return val, nil
}

// Set stores value under key with an optional tag. When the size limit is reached
// the oldest entry is evicted.
func (l *Local) Set(key string, value any, ttl time.Duration, tag string) {
	if !l.settings.EnableCaching {
		return
	}
	if ttl <= 0 {
		ttl = l.settings.DefaultExpiration()
	}
	full := l.fullKey(key)
	now := l.cfg.now()
	absolute := now.Add(ttl)
	expires := absolute
	if sliding := l.settings.SlidingExpiration(); sliding > 0 && sliding < ttl {
		expires = now.Add(sliding)
	}
	l.mutex.Lock()
	if _, exists := l.entries[full]; !exists {
		l.makeRoom()
	}
	l.entries[full] = &localValue{
		object:   value,
		created:  now,
		expires:  expires,
		absolute: absolute,
		tag:      tag,
	}
	l.mutex.Unlock()
	l.logger.Trace("cache set for key: %s with expiration: %s", full, ttl)
}

// makeRoom evicts the oldest entry when the cache is at its size limit. Caller holds
// the mutex.
func (l *Local) makeRoom() {
	limit := l.settings.DefaultSizeLimit
	if limit <= 0 || len(l.entries) < limit {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, v := range l.entries {
		if oldestKey == "" || v.created.Before(oldest) {
			oldestKey, oldest = k, v.created
		}
	}
	delete(l.entries, oldestKey)
	l.logger.Debug("evicted %s to stay within size limit %d", oldestKey, limit)
}

// Remove deletes key.
func (l *Local) Remove(key string) {
	l.mutex.Lock()
	delete(l.entries, l.fullKey(key))
	l.mutex.Unlock()
}

// RemoveByPrefix deletes every key starting with prefix (case-insensitive) and
// returns the number removed.
func (l *Local) RemoveByPrefix(prefix string) int {
	full := strings.ToLower(l.fullKey(prefix))
	return l.removeWhere(func(k string, _ *localValue) bool {
		return strings.HasPrefix(strings.ToLower(k), full)
	}, "prefix", prefix)
}

// RemoveByTag deletes every key carrying tag (case-insensitive) and returns the
// number removed.
func (l *Local) RemoveByTag(tag string) int {
	return l.removeWhere(func(_ string, v *localValue) bool {
		return v.tag != "" && strings.EqualFold(v.tag, tag)
	}, "tag", tag)
}

func (l *Local) removeWhere(match func(string, *localValue) bool, kind, val string) int {
	l.mutex.Lock()
	removed := 0
	for k, v := range l.entries {
		if match(k, v) {
			delete(l.entries, k)
			removed++
		}
	}
	l.mutex.Unlock()
	l.logger.Debug("cache removed %d keys with %s: %s", removed, kind, val)
	return removed
}

// Clear deletes every entry. Counters are kept.
func (l *Local) Clear() {
	l.mutex.Lock()
	l.entries = make(map[string]*localValue)
	l.mutex.Unlock()
	l.logger.Info("cache cleared completely")
}

// Exists reports whether key is present without counting a request.
func (l *Local) Exists(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	v, ok := l.entries[l.fullKey(key)]
	return ok && v.expires.After(l.cfg.now())
}

// Statistics returns the current counters. HitRatio is a percentage.
func (l *Local) Statistics() Statistics {
	l.mutex.Lock()
	total := len(l.entries)
	tagged := 0
	for _, v := range l.entries {
		if v.tag != "" {
			tagged++
		}
	}
	l.mutex.Unlock()
	requests := l.requests.Load()
	hits := l.hits.Load()
	var ratio float64
	if requests > 0 {
		ratio = float64(hits) / float64(requests) * 100
	}
	return Statistics{
		TotalRequests: requests,
		CacheHits:     hits,
		CacheMisses:   l.misses.Load(),
		HitRatio:      ratio,
		TotalKeys:     total,
		KeysWithTags:  tagged,
	}
}

// KeyInfos lists the live entries sorted by key.
func (l *Local) KeyInfos() []KeyInfo {
	now := l.cfg.now()
	l.mutex.Lock()
	infos := make([]KeyInfo, 0, len(l.entries))
	for k, v := range l.entries {
		if !v.expires.After(now) {
			continue
		}
		infos = append(infos, KeyInfo{
			Key:         k,
			CreatedAt:   v.created,
			ExpiresAt:   v.expires,
			AccessCount: v.accessed,
			Tag:         v.tag,
		})
	}
	l.mutex.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// RegisterLoader associates a warmup key with the function that produces its value.
func (l *Local) RegisterLoader(key string, loader Loader) {
	l.mutex.Lock()
	l.loaders[key] = loader
	l.mutex.Unlock()
}

// WarmUp loads every key in CacheWarmupKeys that has a registered loader and returns
// how many were cached. Loader failures are logged and skipped. Nothing is loaded
// while caching is disabled.
func (l *Local) WarmUp(ctx context.Context) int {
	if !l.settings.EnableCaching || !l.settings.EnableCacheWarming || len(l.settings.CacheWarmupKeys) == 0 {
		return 0
	}
	l.logger.Info("starting cache warm-up for %d keys", len(l.settings.CacheWarmupKeys))
	warmed := 0
	for _, key := range l.settings.CacheWarmupKeys {
		l.mutex.Lock()
		loader, ok := l.loaders[key]
		l.mutex.Unlock()
		if !ok {
			l.logger.Debug("no warm-up loader registered for key: %s", key)
			continue
		}
		val, err := loader(ctx)
		if err != nil {
			l.logger.Warn("failed to warm up cache for key %s: %s", key, err)
			continue
		}
		l.Set(key, val, l.settings.LongTermExpiry(), "warmup")
		warmed++
	}
	return warmed
}

// Close stops the expiry sweep.
func (l *Local) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.waitGroup.Wait()
	})
	return nil
}

func (l *Local) run() {
	defer l.waitGroup.Done()
	ticker := time.NewTicker(l.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			now := l.cfg.now()
			l.mutex.Lock()
			for key, v := range l.entries {
				if !v.expires.After(now) {
					delete(l.entries, key)
				}
			}
			l.mutex.Unlock()
		}
	}
}
