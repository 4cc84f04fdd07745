// Package arbiter serializes operator commands from every input source
// behind one mutex and one cooldown window.
package arbiter

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/redraw"
	"github.com/pitabwire/inspector/internal/workflow"
	"github.com/pitabwire/inspector/model"
)

// DefaultCooldown is the minimum spacing between accepted commands.
const DefaultCooldown = time.Second

// Outcome is the result class of a Submit call.
type Outcome int

const (
	// Accepted means the command passed the cooldown gate and was applied.
	// It may still have been a no-op for the workflow (see Result.Changed).
	Accepted Outcome = iota
	// CooldownActive means the command arrived inside the cooldown window
	// and the workflow was not touched.
	CooldownActive
	// Closed means shutdown has started and no command is dispatched.
	Closed
	// Invalid means the command is not part of the vocabulary.
	Invalid
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case CooldownActive:
		return "cooldown"
	case Closed:
		return "closed"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result describes what Submit did.
type Result struct {
	Outcome Outcome
	Command model.Command
	// Changed is true when the workflow state actually moved.
	Changed bool
	Stage   workflow.Stage
}

// Observer receives one call per Submit, after the lock is released.
type Observer interface {
	RecordCommand(source, command, outcome string)
	SetStage(stage workflow.Stage)
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(a *Arbiter) { a.cooldown = d }
}

// WithClock overrides time.Now, used by SubmitNow and CooldownActive.
func WithClock(now func() time.Time) Option {
	return func(a *Arbiter) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Arbiter) { a.logger = l }
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(a *Arbiter) { a.observers = append(a.observers, o) }
}

// Arbiter owns the workflow model. Every read and write of the model, the
// cooldown timestamp and the redraw flag happens under mu.
type Arbiter struct {
	mu       sync.Mutex
	model    *workflow.Model
	trigger  *redraw.Trigger
	cooldown time.Duration
	last     time.Time
	primed   bool
	closed   bool

	now       func() time.Time
	logger    *zap.Logger
	observers []Observer
}

// New returns an Arbiter guarding m. The trigger must be the notifier m was
// built with so that snapshots and dirty-flag reads stay consistent.
func New(m *workflow.Model, trigger *redraw.Trigger, opts ...Option) *Arbiter {
	a := &Arbiter{
		model:    m,
		trigger:  trigger,
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit applies cmd if at is at least one cooldown after the last accepted
// command. The critical section is bounded and performs no I/O.
func (a *Arbiter) Submit(src model.Source, cmd model.Command, at time.Time) Result {
	res := a.submit(cmd, at)

	label := string(cmd)
	if res.Outcome == Invalid {
		label = "unknown"
	}
	for _, o := range a.observers {
		o.RecordCommand(string(src), label, res.Outcome.String())
		if res.Changed {
			o.SetStage(res.Stage)
		}
	}

	switch res.Outcome {
	case Accepted:
		a.logger.Info("command accepted",
			zap.String("source", string(src)),
			zap.String("command", string(cmd)),
			zap.Bool("changed", res.Changed),
			zap.Stringer("stage", res.Stage),
		)
	case CooldownActive:
		a.logger.Debug("command rejected: cooldown active",
			zap.String("source", string(src)),
			zap.String("command", string(cmd)),
		)
	case Closed:
		a.logger.Debug("command dropped: shutting down",
			zap.String("source", string(src)),
			zap.String("command", string(cmd)),
		)
	case Invalid:
		a.logger.Warn("invalid command", zap.String("source", string(src)), zap.String("command", string(cmd)))
	}
	return res
}

// SubmitNow is Submit stamped with the arbiter clock.
func (a *Arbiter) SubmitNow(src model.Source, cmd model.Command) Result {
	return a.Submit(src, cmd, a.now())
}

func (a *Arbiter) submit(cmd model.Command, at time.Time) Result {
	if !cmd.Valid() {
		return Result{Outcome: Invalid, Command: cmd}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Result{Outcome: Closed, Command: cmd, Stage: a.model.Cursor().Stage}
	}
	if a.inCooldown(at) {
		return Result{Outcome: CooldownActive, Command: cmd, Stage: a.model.Cursor().Stage}
	}
	a.last, a.primed = at, true

	var changed bool
	switch cmd {
	case model.CommandNext:
		changed = a.model.Advance(workflow.Forward)
	case model.CommandPrev:
		changed = a.model.Advance(workflow.Backward)
	case model.CommandPass:
		changed = a.model.MarkCurrentStep(workflow.StatusPass)
	case model.CommandFail:
		changed = a.model.MarkCurrentStep(workflow.StatusFail)
	}
	return Result{Outcome: Accepted, Command: cmd, Changed: changed, Stage: a.model.Cursor().Stage}
}

func (a *Arbiter) inCooldown(at time.Time) bool {
	return a.primed && at.Before(a.last.Add(a.cooldown))
}

// CooldownActive reports whether a command stamped now would be rejected.
// The button poller uses it to skip reading inputs during the window.
func (a *Arbiter) CooldownActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inCooldown(a.now())
}

// Snapshot returns the current view without touching the redraw flag.
func (a *Arbiter) Snapshot() workflow.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model.View()
}

// TakeView clears the redraw flag and, if it was set, returns the view that
// the flag covered. Both happen under the lock, so the view always reflects
// every mutation that set the flag.
func (a *Arbiter) TakeView() (workflow.View, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.trigger.Take() {
		return workflow.View{}, false
	}
	return a.model.View(), true
}

// Close stops dispatch. Submit returns Closed from then on. Close is
// idempotent.
func (a *Arbiter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// IsClosed reports whether Close has been called.
func (a *Arbiter) IsClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
