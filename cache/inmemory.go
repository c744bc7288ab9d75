package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/sys"
)

type entry struct {
	data    []byte
	expires time.Time
}

// memoryStore is the process-local substitute used when no redis connection is
// configured. It has the same read and write semantics as redis but cannot
// enumerate keys and is not shared between processes.
type memoryStore struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]*entry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ store = (*memoryStore)(nil)

func newMemoryStore(parent context.Context, cfg config) *memoryStore {
	ctx, cancel := context.WithCancel(parent)
	s := &memoryStore{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

func (s *memoryStore) name() string { return "memory" }

// live returns the entry for key, dropping it if expired. Caller holds the mutex.
func (s *memoryStore) live(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.After(s.cfg.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *memoryStore) get(_ context.Context, key string) sys.Result[[]byte] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.live(key)
	if !ok {
		return sys.Err[[]byte](errMiss)
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return sys.Ok(data)
}

func (s *memoryStore) set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mutex.Lock()
	s.entries[key] = &entry{data: buf, expires: s.cfg.now().Add(ttl)}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) del(_ context.Context, keys ...string) sys.Result[int64] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := s.live(key); ok {
			delete(s.entries, key)
			removed++
		}
	}
	return sys.Ok(removed)
}

func (s *memoryStore) exists(_ context.Context, key string) sys.Result[bool] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.live(key)
	return sys.Ok(ok)
}

// incr mirrors INCRBY: the counter is stored as a decimal string and the TTL is only
// applied when the key is created.
func (s *memoryStore) incr(_ context.Context, key string, delta int64, ttl time.Duration) sys.Result[int64] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.live(key)
	if !ok {
		val := delta
		s.entries[key] = &entry{data: []byte(strconv.FormatInt(val, 10)), expires: s.cfg.now().Add(ttl)}
		return sys.Ok(val)
	}
	cur, err := strconv.ParseInt(string(e.data), 10, 64)
	if err != nil {
		return sys.Err[int64](errors.Wrapf(err, "value at %s is not an integer", key))
	}
	cur += delta
	e.data = []byte(strconv.FormatInt(cur, 10))
	return sys.Ok(cur)
}

func (s *memoryStore) close() error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

func (s *memoryStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.cfg.now()
			s.mutex.Lock()
			for key, e := range s.entries {
				if !e.expires.After(now) {
					delete(s.entries, key)
				}
			}
			s.mutex.Unlock()
		}
	}
}
