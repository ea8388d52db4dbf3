// Package lazy holds resources that are opened on first use and shared for
// the rest of the process lifetime, such as database clients.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var errNoResource = errors.New("opener returned no resource")

// OpenFunc establishes the resource.
type OpenFunc[T any] func(ctx context.Context) (T, error)

// Handle opens its resource once. Concurrent callers that arrive while an
// attempt is in flight wait for that attempt instead of starting their own.
// A successful result is kept until Close. A failed attempt is not kept: the
// error goes to every caller that shared the attempt and the next Get starts
// a new one.
type Handle[T any] struct {
	name    string
	open    OpenFunc[T]
	close   func(T) error
	timeout time.Duration

	group singleflight.Group

	mu       sync.RWMutex
	value    T
	ready    bool
	attempts int
}

type Option[T any] func(*Handle[T])

// WithClose sets the function Close uses to release an opened resource.
func WithClose[T any](fn func(T) error) Option[T] {
	return func(h *Handle[T]) { h.close = fn }
}

// WithTimeout bounds a single open attempt.
func WithTimeout[T any](d time.Duration) Option[T] {
	return func(h *Handle[T]) { h.timeout = d }
}

func New[T any](name string, open OpenFunc[T], opts ...Option[T]) *Handle[T] {
	h := &Handle[T]{
		name:    name,
		open:    open,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get returns the resource, opening it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if v, ok := h.cached(); ok {
		return v, nil
	}

	ch := h.group.DoChan(h.name, func() (any, error) {
		if v, ok := h.cached(); ok {
			return v, nil
		}

		// The attempt is shared, so one caller's cancellation must not fail it
		// for the others.
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()

		h.mu.Lock()
		h.attempts++
		h.mu.Unlock()

		v, err := h.open(openCtx)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", h.name, err)
		}
		if any(v) == nil {
			return nil, fmt.Errorf("open %s: %w", h.name, errNoResource)
		}

		h.mu.Lock()
		h.value = v
		h.ready = true
		h.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("open %s: %w", h.name, errNoResource)
		}
		return v, nil
	}
}

// Ready reports whether the resource is open.
func (h *Handle[T]) Ready() bool {
	_, ok := h.cached()
	return ok
}

// Attempts reports how many times the resource has been opened or tried.
func (h *Handle[T]) Attempts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attempts
}

// Close releases the resource if it was opened. A later Get opens it again.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	v, ok := h.value, h.ready
	var zero T
	h.value = zero
	h.ready = false
	h.mu.Unlock()

	if !ok || h.close == nil {
		return nil
	}
	if err := h.close(v); err != nil {
		return fmt.Errorf("close %s: %w", h.name, err)
	}
	return nil
}

func (h *Handle[T]) cached() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value, h.ready
}
