package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/sys"
	"github.com/redis/go-redis/v9"
)

const scanCount = 500

type redisStore struct {
	conn *Connector
}

var (
	_ store   = (*redisStore)(nil)
	_ scanner = (*redisStore)(nil)
)

func newRedisStore(conn *Connector) *redisStore {
	return &redisStore{conn: conn}
}

func (s *redisStore) name() string { return "redis" }

func (s *redisStore) get(ctx context.Context, key string) sys.Result[[]byte] {
	var data []byte
	err := s.conn.do(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.conn.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return sys.Err[[]byte](errMiss)
	}
	if err != nil {
		return sys.Err[[]byte](err)
	}
	return sys.Ok(data)
}

func (s *redisStore) set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.conn.do(ctx, func(ctx context.Context) error {
		return s.conn.client.Set(ctx, key, data, ttl).Err()
	})
}

func (s *redisStore) del(ctx context.Context, keys ...string) sys.Result[int64] {
	if len(keys) == 0 {
		return sys.Ok[int64](0)
	}
	var removed int64
	err := s.conn.do(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.conn.client.Del(ctx, keys...).Result()
		return err
	})
	if err != nil {
		return sys.Err[int64](err)
	}
	return sys.Ok(removed)
}

func (s *redisStore) exists(ctx context.Context, key string) sys.Result[bool] {
	var n int64
	err := s.conn.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.conn.client.Exists(ctx, key).Result()
		return err
	})
	if err != nil {
		return sys.Err[bool](err)
	}
	return sys.Ok(n > 0)
}

// incr applies INCRBY and sets the TTL when the counter has none, i.e. it was just created.
func (s *redisStore) incr(ctx context.Context, key string, delta int64, ttl time.Duration) sys.Result[int64] {
	var val int64
	err := s.conn.do(ctx, func(ctx context.Context) error {
		pipe := s.conn.client.TxPipeline()
		incr := pipe.IncrBy(ctx, key, delta)
		remaining := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		val = incr.Val()
		if remaining.Val() < 0 {
			return s.conn.client.Expire(ctx, key, ttl).Err()
		}
		return nil
	})
	if err != nil {
		return sys.Err[int64](err)
	}
	return sys.Ok(val)
}

// scan walks the configured database with SCAN so large keyspaces do not block the
// server the way KEYS would.
func (s *redisStore) scan(ctx context.Context, pattern string) sys.Result[[]string] {
	keys := make([]string, 0)
	err := s.conn.do(ctx, func(ctx context.Context) error {
		iter := s.conn.client.Scan(ctx, 0, pattern, scanCount).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return iter.Err()
	})
	if err != nil {
		return sys.Err[[]string](err)
	}
	return sys.Ok(keys)
}

func (s *redisStore) ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// close is a no-op: the Connector is owned by whoever created it.
func (s *redisStore) close() error {
	return nil
}
