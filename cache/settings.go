package cache

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/xhit/go-str2duration/v2"
)

// ErrInvalidSettings is returned by Settings.Validate when one or more fields are out of range.
var ErrInvalidSettings = errors.New("cache: invalid settings")

// Settings is the cache configuration shared by the distributed facade, the local
// companion cache and the warmup service.
type Settings struct {
	EnableCaching            bool     `yaml:"enable_caching" json:"enableCaching"`
	EnableDistributedCache   bool     `yaml:"enable_distributed_cache" json:"enableDistributedCache"`
	CacheKeyPrefix           string   `yaml:"cache_key_prefix" json:"cacheKeyPrefix"`
	DefaultExpirationMinutes int      `yaml:"default_expiration_minutes" json:"defaultExpirationMinutes" validate:"gt=0"`
	SlidingExpirationMinutes int      `yaml:"sliding_expiration_minutes" json:"slidingExpirationMinutes" validate:"gte=0"`
	LongTermExpiryMinutes    int      `yaml:"long_term_expiry_minutes" json:"longTermExpiryMinutes" validate:"gte=0"`
	DefaultSizeLimit         int      `yaml:"default_size_limit" json:"defaultSizeLimit" validate:"gt=0"`
	RedisConnectionString    string   `yaml:"redis_connection_string" json:"-"`
	RedisDatabase            int      `yaml:"redis_database" json:"redisDatabase" validate:"gte=0"`
	RedisTimeoutMs           int      `yaml:"redis_timeout_ms" json:"redisTimeoutMs" validate:"gt=0"`
	Codec                    string   `yaml:"codec" json:"codec" validate:"omitempty,oneof=json msgpack"`
	EnableCacheWarming       bool     `yaml:"enable_cache_warming" json:"enableCacheWarming"`
	CacheWarmupKeys          []string `yaml:"cache_warmup_keys" json:"cacheWarmupKeys"`
	WarmupInterval           string   `yaml:"warmup_interval" json:"warmupInterval"`
	WarmupDelay              string   `yaml:"warmup_delay" json:"warmupDelay"`
}

// DefaultSettings returns the settings used when no configuration is supplied.
func DefaultSettings() Settings {
	return Settings{
		EnableCaching:            true,
		EnableDistributedCache:   true,
		CacheKeyPrefix:           "decorstore",
		DefaultExpirationMinutes: 30,
		LongTermExpiryMinutes:    240,
		DefaultSizeLimit:         1024,
		RedisTimeoutMs:           5000,
		Codec:                    "json",
		WarmupInterval:           "4h",
		WarmupDelay:              "2m",
	}
}

var validate = validator.New()

// Validate checks the numeric ranges and enumerations of the settings. The returned
// error wraps ErrInvalidSettings and lists every failing field.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return errors.Wrap(ErrInvalidSettings, strings.Join(fields, "; "))
		}
		return errors.Wrap(err, "validating cache settings")
	}
	if _, err := s.warmupInterval(); err != nil {
		return errors.Wrapf(ErrInvalidSettings, "WarmupInterval: %v", err)
	}
	if _, err := s.warmupDelay(); err != nil {
		return errors.Wrapf(ErrInvalidSettings, "WarmupDelay: %v", err)
	}
	return nil
}

// DefaultExpiration is DefaultExpirationMinutes as a duration.
func (s Settings) DefaultExpiration() time.Duration {
	return time.Duration(s.DefaultExpirationMinutes) * time.Minute
}

// SlidingExpiration is SlidingExpirationMinutes as a duration; zero disables sliding.
func (s Settings) SlidingExpiration() time.Duration {
	return time.Duration(s.SlidingExpirationMinutes) * time.Minute
}

// LongTermExpiry is the TTL used for warmed entries. Falls back to the default expiration.
func (s Settings) LongTermExpiry() time.Duration {
	if s.LongTermExpiryMinutes <= 0 {
		return s.DefaultExpiration()
	}
	return time.Duration(s.LongTermExpiryMinutes) * time.Minute
}

// RedisTimeout is RedisTimeoutMs as a duration.
func (s Settings) RedisTimeout() time.Duration {
	return time.Duration(s.RedisTimeoutMs) * time.Millisecond
}

// UseRedis reports whether a real Redis connector should be created.
func (s Settings) UseRedis() bool {
	return s.EnableDistributedCache && s.RedisConnectionString != ""
}

func (s Settings) warmupInterval() (time.Duration, error) {
	return parseDuration(s.WarmupInterval, 4*time.Hour)
}

func (s Settings) warmupDelay() (time.Duration, error) {
	return parseDuration(s.WarmupDelay, 0)
}

func parseDuration(val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	return str2duration.ParseDuration(val)
}
