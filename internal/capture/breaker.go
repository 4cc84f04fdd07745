package capture

import (
	"sync"
	"time"
)

// BreakerState is the state of a restartBreaker.
type BreakerState int

const (
	// BreakerClosed restarts after the normal retry pause. Failures are
	// counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen holds restarts off until the backoff has elapsed.
	BreakerOpen
	// BreakerHalfOpen allows a single probe restart.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Restart backoff defaults.
const (
	DefaultRestartThreshold = 5
	DefaultRestartBackoff   = 30 * time.Second
)

// restartBreaker stretches the pause between camera restarts once the
// pipeline has failed threshold times in a row without producing a frame. A
// single frame closes it again. It is safe for concurrent use.
type restartBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	threshold int
	backoff   time.Duration
	openedAt  time.Time
	now       func() time.Time
}

func newRestartBreaker(threshold int, backoff time.Duration) *restartBreaker {
	if threshold < 1 {
		threshold = DefaultRestartThreshold
	}
	if backoff <= 0 {
		backoff = DefaultRestartBackoff
	}
	return &restartBreaker{
		threshold: threshold,
		backoff:   backoff,
		now:       time.Now,
	}
}

// Delay returns how long to wait before the next restart: pause while
// closed or half-open, the rest of the backoff while open. An open breaker
// whose backoff has elapsed moves to half-open.
func (b *restartBreaker) Delay(pause time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if remaining := b.backoff - b.now().Sub(b.openedAt); remaining > 0 {
			return remaining
		}
		b.state = BreakerHalfOpen
	}
	return pause
}

// RecordFailure counts a pipeline failure and reports whether it tripped
// the breaker open.
func (b *restartBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
			return true
		}
	case BreakerHalfOpen:
		// The probe failed.
		b.state = BreakerOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess closes the breaker and reports whether it was not already
// closed.
func (b *restartBreaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	recovered := b.state != BreakerClosed
	b.state = BreakerClosed
	b.failures = 0
	return recovered
}

// State returns the current state.
func (b *restartBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
