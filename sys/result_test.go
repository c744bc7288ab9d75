package sys

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultIsOk(t *testing.T) {
	tests := []struct {
		name     string
		result   Result[string]
		expected bool
	}{
		{name: "value", result: Ok("payload"), expected: true},
		{name: "empty value", result: Ok(""), expected: true},
		{name: "error", result: Err[string](errors.New("boom")), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsOk())
			assert.Equal(t, !tt.expected, tt.result.IsErr())
		})
	}
}

func TestResultIsErrMatchesWrapped(t *testing.T) {
	miss := errors.New("miss")
	other := errors.New("other")
	r := Err[[]byte](fmt.Errorf("lookup: %w", miss))
	assert.True(t, r.IsErr(miss))
	assert.True(t, r.IsErr(other, miss))
	assert.False(t, r.IsErr(other))
	assert.Nil(t, r.Ok)
}

func TestResultIsErrOnOk(t *testing.T) {
	r := Ok(42)
	assert.False(t, r.IsErr(errors.New("anything")))
}

func TestResultOr(t *testing.T) {
	assert.Equal(t, int64(7), Ok[int64](7).Or(0))
	assert.Equal(t, int64(-1), Err[int64](errors.New("down")).Or(-1))
	assert.Equal(t, []string{}, Err[[]string](errors.New("down")).Or([]string{}))
}
