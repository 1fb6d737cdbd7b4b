// Package connectivity tracks whether the backend is reachable and notifies
// subscribers on every transition.
package connectivity

import (
	"sync"
)

// Detector holds the current online state. Subscribers are called only on
// edges (offline to online or back), never for a repeated state.
type Detector struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn func(online bool)
}

// New returns a Detector initialized to initial.
func New(initial bool) *Detector {
	return &Detector{online: initial}
}

// Online reports the current state.
func (d *Detector) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Set records the observed state and reports whether it changed. On change,
// subscribers run synchronously in subscription order after the new state is
// visible through Online.
func (d *Detector) Set(online bool) bool {
	d.mu.Lock()
	if d.online == online {
		d.mu.Unlock()
		return false
	}
	d.online = online
	subs := make([]subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, s := range subs {
		s.fn(online)
	}
	return true
}

// Subscribe registers fn for transitions and returns a func that removes it.
func (d *Detector) Subscribe(fn func(online bool)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}
