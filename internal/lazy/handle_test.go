package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conn struct {
	id int
}

func TestConcurrentGetSharesOneAttempt(t *testing.T) {
	var opens atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	h := New("db", func(context.Context) (*conn, error) {
		n := opens.Add(1)
		if n == 1 {
			close(started)
		}
		<-release
		return &conn{id: int(n)}, nil
	})

	const callers = 8
	results := make([]*conn, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c, err := h.Get(context.Background())
		assert.NoError(t, err)
		results[0] = c
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := h.Get(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, 1, h.Attempts())
	for _, c := range results {
		require.NotNil(t, c)
		assert.Same(t, results[0], c)
	}

	again, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, results[0], again)
	assert.Equal(t, int32(1), opens.Load())
}

func TestFailedAttemptIsRetriedOnNextGet(t *testing.T) {
	var opens atomic.Int32
	h := New("db", func(context.Context) (*conn, error) {
		if opens.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return &conn{id: 2}, nil
	})

	_, err := h.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open db")
	assert.False(t, h.Ready())

	c, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.id)
	assert.True(t, h.Ready())
	assert.Equal(t, 2, h.Attempts())
}

func TestCallerCancellationDoesNotFailSharedAttempt(t *testing.T) {
	release := make(chan struct{})
	h := New("db", func(ctx context.Context) (*conn, error) {
		select {
		case <-release:
			return &conn{id: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.Get(ctx)
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	c, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, c.id)
	assert.Equal(t, 1, h.Attempts())
}

func TestCloseReleasesAndReopens(t *testing.T) {
	var closed []int
	var opens atomic.Int32
	h := New("db",
		func(context.Context) (*conn, error) {
			return &conn{id: int(opens.Add(1))}, nil
		},
		WithClose(func(c *conn) error {
			closed = append(closed, c.id)
			return nil
		}),
	)

	require.NoError(t, h.Close())
	assert.Empty(t, closed)

	_, err := h.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, []int{1}, closed)
	assert.False(t, h.Ready())

	c, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.id)
}

type pinger interface{ Ping() error }

func TestNilInterfaceResourceIsAnError(t *testing.T) {
	h := New("cache", func(context.Context) (pinger, error) {
		return nil, nil
	})

	var got pinger
	var err error
	require.NotPanics(t, func() { got, err = h.Get(context.Background()) })
	assert.ErrorIs(t, err, errNoResource)
	assert.Nil(t, got)
	assert.False(t, h.Ready())
}
