// Package autosave binds a form instance to one draft key and writes its
// data to the draft store, immediately or after a quiet period.
package autosave

import (
	"sync"
	"time"
)

// timer is the part of *time.Timer the Debouncer needs.
type timer interface {
	Stop() bool
}

// Debouncer runs the most recently scheduled function once no new Schedule
// call has arrived for the configured delay (trailing edge).
// Pending work is never run implicitly on teardown: call Flush or Cancel.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   timer
	pending func()
	gen     uint64

	afterFunc func(time.Duration, func()) timer
}

// NewDebouncer returns a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Schedule replaces any pending function with fn and restarts the quiet
// period. The returned cancel drops fn if it is still the pending one; it
// does not affect later schedules.
func (d *Debouncer) Schedule(fn func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen) })

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen == gen {
			d.stopLocked()
			d.pending = nil
			d.gen++
		}
	}
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

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Cancel drops the pending function without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.pending = nil
	d.gen++
}

// Flush runs the pending function now, if any, and reports whether it ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.pending
	d.stopLocked()
	d.pending = nil
	d.gen++
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Pending reports whether a function is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
