package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/decorstore/cachekit/admin"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDataCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	r := func(args ...string) (string, error) {
		return run(t, append([]string{"--redis", mr.Addr(), "--prefix", "shop"}, args...)...)
	}

	out, err := r("ping")
	require.NoError(t, err)
	assert.Contains(t, out, "redis is reachable")

	out, err = r("set", "--ttl", "90s", "user:42", `{"name":"ada"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "stored user:42")
	assert.True(t, mr.Exists("shop:distributed:user:42"))
	assert.Equal(t, 90, int(mr.TTL("shop:distributed:user:42").Seconds()))

	out, err = r("get", "user:42")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"ada"}`+"\n", out)

	_, err = r("set", "greeting", "hello there")
	require.NoError(t, err)
	out, err = r("get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, `"hello there"`+"\n", out)

	out, err = r("incr", "visits")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	out, err = r("incr", "visits", "4")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = r("keys")
	require.NoError(t, err)
	for _, k := range []string{"user:42", "greeting", "visits"} {
		assert.Contains(t, out, k)
	}
	out, err = r("keys", "user:*")
	require.NoError(t, err)
	assert.NotContains(t, out, "visits")

	_, err = r("del", "greeting")
	require.NoError(t, err)
	_, err = r("get", "greeting")
	assert.ErrorContains(t, err, "not found")
}

func TestClearCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	r := func(args ...string) (string, error) {
		return run(t, append([]string{"--redis", mr.Addr()}, args...)...)
	}
	for _, k := range []string{"user:1", "user:2", "order:1"} {
		_, err := r("set", k, "1")
		require.NoError(t, err)
	}

	out, err := r("clear", "user:")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing removed")
	assert.Len(t, mr.Keys(), 3)

	out, err = r("clear", "--force", "user:")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2 keys")
	assert.Equal(t, []string{"decorstore:distributed:order:1"}, mr.Keys())

	_, err = r("clear", "-f")
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestPingWithoutRedis(t *testing.T) {
	t.Setenv("DECORSTORE_CACHE_REDIS_CONNECTION_STRING", "")
	_, err := run(t, "ping")
	assert.ErrorContains(t, err, "memory backend is not connected")
}

func TestInvalidArguments(t *testing.T) {
	_, err := run(t, "set", "--ttl", "soon", "k", "v")
	assert.ErrorContains(t, err, "--ttl")
	_, err = run(t, "incr", "k", "x")
	assert.ErrorContains(t, err, "delta")
	_, err = run(t, "get")
	assert.Error(t, err)
}

func TestRemoteCommands(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	settings := cache.DefaultSettings()
	dist := cache.NewMemoryDistributed(ctx, settings, log)
	defer dist.Close()
	local := cache.NewLocal(ctx, settings, log)
	defer local.Close()
	local.Set("user:1", 1, 0, "")

	server, err := admin.New(dist, local, log, admin.WithAuthorizer(admin.NewTokenAuthorizer("tkn")))
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	out, err := run(t, "remote", "--url", srv.URL, "--token", "tkn", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "local keys\t1")
	assert.Contains(t, out, "backend\tmemory")

	out, err = run(t, "remote", "--url", srv.URL, "--token", "tkn", "clear", "user:")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared for prefix 'user:' successfully")
	assert.False(t, local.Exists("user:1"))

	out, err = run(t, "remote", "--url", srv.URL, "--token", "tkn", "warmup")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache warmup initiated successfully")

	_, err = run(t, "remote", "--url", srv.URL, "stats")
	assert.ErrorContains(t, err, "missing bearer token")
}

func TestRefreshLoader(t *testing.T) {
	ctx := context.Background()
	dist := cache.NewMemoryDistributed(ctx, cache.DefaultSettings(), logger.NewTestLogger())
	defer dist.Close()

	_, err := refreshLoader(dist, "featured")(ctx)
	assert.Error(t, err)

	dist.Set(ctx, "featured", []string{"sofa"}, 0)
	val, err := refreshLoader(dist, "featured")(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"sofa"}, val)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, map[string]any{"a": true}, parseValue(`{"a":true}`))
	assert.Equal(t, "plain text", parseValue("plain text"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Empty(t, splitList(""))
}

func TestIncrRejectsMsgpack(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("DECORSTORE_CACHE_CODEC", "msgpack")
	_, err := run(t, "--redis", mr.Addr(), "incr", "visits")
	assert.ErrorContains(t, err, "counters require the json codec")
	assert.False(t, mr.Exists("decorstore:distributed:visits"))
}
