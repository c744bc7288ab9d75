package cache

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSettingsValid(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())
	assert.Equal(t, 30*time.Minute, s.DefaultExpiration())
	assert.Equal(t, 4*time.Hour, s.LongTermExpiry())
	assert.Equal(t, 5*time.Second, s.RedisTimeout())
	assert.False(t, s.UseRedis())
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.DefaultExpirationMinutes = 0
	s.Codec = "xml"
	err := s.Validate()
	assert.True(t, errors.Is(err, ErrInvalidSettings))
	assert.ErrorContains(t, err, "DefaultExpirationMinutes")
	assert.ErrorContains(t, err, "Codec")

	s = DefaultSettings()
	s.WarmupInterval = "every so often"
	assert.True(t, errors.Is(s.Validate(), ErrInvalidSettings))
}

func TestSettingsDurations(t *testing.T) {
	s := DefaultSettings()
	s.LongTermExpiryMinutes = 0
	assert.Equal(t, s.DefaultExpiration(), s.LongTermExpiry())

	s.WarmupInterval = "1d2h"
	d, err := s.warmupInterval()
	assert.NoError(t, err)
	assert.Equal(t, 26*time.Hour, d)

	s.WarmupInterval = ""
	d, err = s.warmupInterval()
	assert.NoError(t, err)
	assert.Equal(t, 4*time.Hour, d)

	s.RedisConnectionString = "localhost:6379"
	assert.True(t, s.UseRedis())
	s.EnableDistributedCache = false
	assert.False(t, s.UseRedis())
}
