// Package debounce delays a callback until calls to it have stopped for a
// quiet window. Only the most recent callback runs; earlier ones are dropped.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds at most one pending invocation. Each Do replaces the
// pending callback and re-arms the trailing timer.
//
// Every scheduling change bumps a generation counter and a timer only runs
// its callback if its generation is still current, so a timer whose Stop lost
// the race with expiry cannot run a superseded callback.
//
// Callbacks run on the timer goroutine, outside the Debouncer's lock.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending func()
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Do schedules fn to run after the quiet window, replacing any pending
// callback. Calls after Stop are ignored.
func (d *Debouncer) Do(fn func()) {
	if fn == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.gen++
	gen := d.gen
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Flush runs the pending callback immediately on the calling goroutine.
// It reports whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Cancel drops the pending callback. It reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.take() != nil
}

// Stop cancels the pending callback and ignores all later calls.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
	d.stopped = true
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// take must be called with d.mu held.
func (d *Debouncer) take() func() {
	d.gen++
	fn := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return fn
}

// Wrap returns a debounced version of fn.
func Wrap(delay time.Duration, fn func()) func() {
	d := New(delay)
	return func() { d.Do(fn) }
}

// Func returns a debounced version of fn that runs with the arguments of the
// last call in the window.
func Func[T any](delay time.Duration, fn func(T)) func(T) {
	d := New(delay)
	return func(arg T) {
		d.Do(func() { fn(arg) })
	}
}
