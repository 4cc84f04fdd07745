// Package redraw implements the dirty flag that decouples "state changed"
// from "frame drawn".
package redraw

import "sync/atomic"

// Trigger is a coalescing redraw signal. Any number of Mark calls between
// two Take calls produce a single redraw.
type Trigger struct {
	dirty atomic.Bool
	wake  chan struct{}
}

// New returns a Trigger that starts dirty so the first frame is drawn.
func New() *Trigger {
	t := &Trigger{wake: make(chan struct{}, 1)}
	t.Mark()
	return t
}

// Mark flags the state as changed and wakes a waiting consumer. It never
// blocks.
func (t *Trigger) Mark() {
	t.dirty.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Take reports whether the flag was set and clears it.
func (t *Trigger) Take() bool {
	return t.dirty.Swap(false)
}

// C is signalled after Mark. A receive does not clear the flag; call Take.
func (t *Trigger) C() <-chan struct{} {
	return t.wake
}
