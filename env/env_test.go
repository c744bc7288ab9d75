package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvBuffer(t *testing.T) {
	t.Setenv("CACHEKIT_TEST_HOST", "redis.internal")
	buf := []byte(`
# comment
export PREFIX=decorstore
HOST=${env:CACHEKIT_TEST_HOST}
URL="redis://${HOST}:6379/${DB:-0}"
KEY='${PREFIX}:distributed'
LATER=${EARLY_REF}
EARLY_REF=resolved
EMPTY=
MISSING=${NOPE}
`)
	lines := ParseEnvBuffer(buf)
	vals := map[string]string{}
	for _, l := range lines {
		vals[l.Key] = l.Val
	}
	assert.Equal(t, "decorstore", vals["PREFIX"])
	assert.Equal(t, "redis.internal", vals["HOST"])
	assert.Equal(t, "redis://redis.internal:6379/0", vals["URL"])
	assert.Equal(t, "decorstore:distributed", vals["KEY"])
	assert.Equal(t, "resolved", vals["LATER"])
	assert.Equal(t, "", vals["EMPTY"])
	assert.Equal(t, "${NOPE}", vals["MISSING"])
	assert.Empty(t, ParseEnvBuffer(nil))
}

func TestProcessEnvLine(t *testing.T) {
	assert.Equal(t, EnvLine{Key: "A", Val: "b=c"}, ProcessEnvLine("A=b=c"))
	assert.Equal(t, EnvLine{Key: "A", Val: "quoted"}, ProcessEnvLine(`A="quoted"`))
	assert.Equal(t, EnvLine{Key: "FLAG"}, ProcessEnvLine("FLAG"))
	assert.Equal(t, `"half`, dequote(`"half`))
}

func TestParseEnvFileMissing(t *testing.T) {
	lines, err := ParseEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	return cmd
}

func TestFlagOrEnv(t *testing.T) {
	cmd := newCmd()
	t.Setenv("CACHEKIT_TEST_LEVEL", "warn")
	assert.Equal(t, "warn", FlagOrEnv(cmd, "log-level", "CACHEKIT_TEST_LEVEL", "info"))
	require.NoError(t, cmd.Flags().Set("log-level", "trace"))
	assert.Equal(t, "trace", FlagOrEnv(cmd, "log-level", "CACHEKIT_TEST_LEVEL", "info"))
	assert.Equal(t, "def", FlagOrEnv(cmd, "unknown", "CACHEKIT_TEST_UNSET", "def"))
}

func TestLogLevel(t *testing.T) {
	t.Setenv(logger.EnvLogLevel, "error")
	cmd := newCmd()
	assert.Equal(t, logger.LevelError, LogLevel(cmd))
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	assert.Equal(t, logger.LevelDebug, LogLevel(cmd))
}

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(SettingsSource{Lookup: lookupMap(nil)})
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultSettings(), s)
}

func TestLoadSettingsLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cache.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
cache_key_prefix: shop
default_expiration_minutes: 10
redis_connection_string: localhost:6379
cache_warmup_keys: [featured]
`), 0o600))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DECORSTORE_CACHE_REDIS_DATABASE=3\nDECORSTORE_CACHE_CODEC=json\n"), 0o600))

	s, err := LoadSettings(SettingsSource{
		File:    file,
		EnvFile: dotenv,
		Lookup: lookupMap(map[string]string{
			"DECORSTORE_CACHE_CODEC":             "msgpack",
			"DECORSTORE_CACHE_ENABLE_CACHING":    "false",
			"DECORSTORE_CACHE_CACHE_WARMUP_KEYS": "categories, products ,",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "shop", s.CacheKeyPrefix)
	assert.Equal(t, 10, s.DefaultExpirationMinutes)
	assert.Equal(t, "localhost:6379", s.RedisConnectionString)
	assert.Equal(t, 3, s.RedisDatabase)
	assert.Equal(t, "msgpack", s.Codec)
	assert.False(t, s.EnableCaching)
	assert.Equal(t, []string{"categories", "products"}, s.CacheWarmupKeys)
	assert.Equal(t, 240, s.LongTermExpiryMinutes)
}

func TestLoadSettingsErrors(t *testing.T) {
	_, err := LoadSettings(SettingsSource{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = LoadSettings(SettingsSource{Lookup: lookupMap(map[string]string{
		"DECORSTORE_CACHE_REDIS_TIMEOUT_MS": "soon",
	})})
	assert.ErrorContains(t, err, "DECORSTORE_CACHE_REDIS_TIMEOUT_MS")

	_, err = LoadSettings(SettingsSource{Lookup: lookupMap(map[string]string{
		"DECORSTORE_CACHE_DEFAULT_EXPIRATION_MINUTES": "0",
	})})
	assert.True(t, errors.Is(err, cache.ErrInvalidSettings))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DECORSTORE_CACHE_REDIS_CONNECTION_STRING", EnvName("redis_connection_string"))
}
