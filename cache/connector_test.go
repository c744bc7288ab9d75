package cache

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionString(t *testing.T) {
	opts, err := parseConnectionString("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = parseConnectionString("redis://:pw@cache.internal:6380/3")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = parseConnectionString("redis://host:6379/notadb")
	assert.Error(t, err)
}

func TestNewConnectorOverridesDatabase(t *testing.T) {
	mr, _ := newTestRedis(t)
	log := logger.NewTestLogger()
	settings := DefaultSettings()
	settings.RedisConnectionString = "redis://" + mr.Addr() + "/2"

	conn, err := NewConnector(context.Background(), settings, log)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.Client().Options().DB)
	assert.Equal(t, settings.RedisConnectionString, conn.Endpoint())
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	settings.RedisDatabase = 5
	conn, err = NewConnector(context.Background(), settings, log)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, 5, conn.Client().Options().DB)
	assert.Equal(t, 5*time.Second, conn.Client().Options().ReadTimeout)
	assert.Empty(t, log.Entries("WARNING"))
}

func TestConnectorFromClientDoesNotClose(t *testing.T) {
	_, client := newTestRedis(t)
	conn := NewConnectorFromClient(client, DefaultSettings(), logger.NewTestLogger())
	require.NoError(t, conn.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
	assert.Equal(t, "closed", conn.State())
	assert.Equal(t, client.Options().Addr, conn.Endpoint())
}

func TestConnectorEndpointIsMasked(t *testing.T) {
	mr, _ := newTestRedis(t)
	settings := DefaultSettings()
	settings.RedisConnectionString = "redis://:hunter2@" + mr.Addr() + "/0"
	mr.RequireAuth("hunter2")
	log := logger.NewTestLogger()
	conn, err := NewConnector(context.Background(), settings, log)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "redis://:*******@"+mr.Addr()+"/0", conn.Endpoint())
	assert.NoError(t, conn.Ping(context.Background()))
	for _, entry := range log.Logs {
		assert.NotContains(t, entry.Message, "hunter2")
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(redis.Nil))
	assert.True(t, isBreakerSuccess(errors.Wrap(context.Canceled, "get")))
	assert.False(t, isBreakerSuccess(context.DeadlineExceeded))
	assert.False(t, isBreakerSuccess(errors.New("connection refused")))
}
