package capture

import (
	"testing"
	"time"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, backoff time.Duration) (*restartBreaker, *stepClock) {
	clk := &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newRestartBreaker(threshold, backoff)
	b.now = clk.now
	return b, clk
}

func TestRestartBreaker_startsClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	if s := b.State(); s != BreakerClosed {
		t.Errorf("initial state = %v, want closed", s)
	}
	if d := b.Delay(time.Second); d != time.Second {
		t.Errorf("Delay() = %v, want 1s", d)
	}
}

func TestRestartBreaker_opensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	if b.RecordFailure() || b.RecordFailure() {
		t.Fatal("tripped before threshold")
	}
	if !b.RecordFailure() {
		t.Fatal("third failure did not trip")
	}
	if s := b.State(); s != BreakerOpen {
		t.Errorf("state = %v, want open", s)
	}
	if d := b.Delay(time.Second); d != time.Minute {
		t.Errorf("Delay() = %v, want 1m", d)
	}
}

func TestRestartBreaker_delayCountsDown(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	clk.advance(40 * time.Second)
	if d := b.Delay(time.Second); d != 20*time.Second {
		t.Errorf("Delay() = %v, want 20s", d)
	}
}

func TestRestartBreaker_halfOpenAfterBackoff(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	clk.advance(time.Minute)
	if d := b.Delay(time.Second); d != time.Second {
		t.Errorf("Delay() = %v, want 1s", d)
	}
	if s := b.State(); s != BreakerHalfOpen {
		t.Errorf("state = %v, want half-open", s)
	}
}

func TestRestartBreaker_failedProbeReopens(t *testing.T) {
	b, clk := newTestBreaker(2, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	clk.advance(time.Minute)
	b.Delay(time.Second)

	if !b.RecordFailure() {
		t.Fatal("failed probe did not reopen")
	}
	if s := b.State(); s != BreakerOpen {
		t.Errorf("state = %v, want open", s)
	}
	if d := b.Delay(time.Second); d != time.Minute {
		t.Errorf("Delay() = %v, want a fresh 1m backoff", d)
	}
}

func TestRestartBreaker_successCloses(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	clk.advance(time.Minute)
	b.Delay(time.Second)

	if !b.RecordSuccess() {
		t.Error("RecordSuccess() = false, want true after recovery")
	}
	if s := b.State(); s != BreakerClosed {
		t.Errorf("state = %v, want closed", s)
	}
	if b.RecordSuccess() {
		t.Error("RecordSuccess() = true on an already closed breaker")
	}
}

func TestRestartBreaker_successResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if s := b.State(); s != BreakerClosed {
		t.Errorf("state = %v, want closed", s)
	}
}

func TestRestartBreaker_defaults(t *testing.T) {
	b := newRestartBreaker(0, 0)
	if b.threshold != DefaultRestartThreshold || b.backoff != DefaultRestartBackoff {
		t.Errorf("defaults = %d/%v", b.threshold, b.backoff)
	}
}

func TestBreakerState_String(t *testing.T) {
	tests := map[BreakerState]string{
		BreakerClosed:   "closed",
		BreakerOpen:     "open",
		BreakerHalfOpen: "half-open",
		BreakerState(9): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
