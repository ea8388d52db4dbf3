package ratelimit

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewTokenBucket(nil, 10, time.Minute, "")
	assert.Error(t, err)
	_, err = NewTokenBucket(client, 0, time.Minute, "")
	assert.Error(t, err)
	_, err = NewTokenBucket(client, 10, 0, "")
	assert.Error(t, err)

	l, err := NewTokenBucket(client, 60, time.Minute, " ")
	require.NoError(t, err)
	assert.Equal(t, "imaginify:ratelimit:user-1", l.key("user-1"))
	assert.Equal(t, "imaginify:ratelimit:anonymous", l.key(""))
	assert.InDelta(t, 0.001, l.refillPerMS, 1e-9)
	assert.Equal(t, 2*time.Minute, l.ttl)
}

func TestParseDecision(t *testing.T) {
	d, err := parseDecision([]any{int64(1), int64(4), int64(0)})
	require.NoError(t, err)
	assert.Equal(t, Decision{Allowed: true, Remaining: 4}, d)

	d, err = parseDecision([]any{int64(0), "0", float64(1500)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	_, err = parseDecision([]any{int64(1)})
	assert.Error(t, err)
	_, err = parseDecision([]any{int64(1), []byte("x"), int64(0)})
	assert.Error(t, err)
}
