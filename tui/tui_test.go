package tui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutTTY(t *testing.T) {
	orig := HasTTY
	HasTTY = false
	t.Cleanup(func() { HasTTY = orig })
}

func TestTablePlain(t *testing.T) {
	withoutTTY(t)
	var buf bytes.Buffer
	Table(&buf, []string{"KEY", "TTL"}, [][]string{{"user:1", "60s"}, {"user:2", "-"}})
	assert.Equal(t, "KEY\tTTL\nuser:1\t60s\nuser:2\t-\n", buf.String())
}

func TestTableStyled(t *testing.T) {
	orig := HasTTY
	HasTTY = true
	defer func() { HasTTY = orig }()
	var buf bytes.Buffer
	Table(&buf, []string{"KEY"}, [][]string{{"user:1"}})
	assert.Contains(t, buf.String(), "user:1")
	assert.Contains(t, buf.String(), "KEY")
}

func TestBannerPlain(t *testing.T) {
	withoutTTY(t)
	var buf bytes.Buffer
	Banner(&buf, "cachectl", "listening on :8081")
	assert.Equal(t, "listening on :8081\n", buf.String())
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	Success(&buf, "removed %d keys", 3)
	Warning(&buf, "redis %s", "down")
	assert.Contains(t, buf.String(), "removed 3 keys")
	assert.Contains(t, buf.String(), "redis down")
}

func TestPromptsWithoutTTY(t *testing.T) {
	withoutTTY(t)
	ok, err := Confirm("sure?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ran := false
	require.NoError(t, Spin(context.Background(), "working", func() { ran = true }))
	assert.True(t, ran)
}
