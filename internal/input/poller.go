package input

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/arbiter"
	"github.com/pitabwire/inspector/model"
)

// pressed is the line level of a held button. Buttons pull the line low.
const pressed = 0

// Submitter is the part of the arbiter the poller needs.
type Submitter interface {
	CooldownActive() bool
	SubmitNow(src model.Source, cmd model.Command) arbiter.Result
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the idle polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithReleasePoll sets the polling interval while waiting for release.
func WithReleasePoll(d time.Duration) Option {
	return func(p *Poller) { p.releasePoll = d }
}

// WithMaxHold bounds the wait for release. A longer hold is discarded.
func WithMaxHold(d time.Duration) Option {
	return func(p *Poller) { p.maxHold = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller turns button presses into commands. A press is acted on when the
// button is released, so holding a button issues exactly one command.
type Poller struct {
	pins        Pins
	buttons     []Button
	submit      Submitter
	interval    time.Duration
	releasePoll time.Duration
	maxHold     time.Duration
	logger      *zap.Logger

	values []int
}

// NewPoller returns a poller over pins, whose lines are ordered as buttons.
func NewPoller(pins Pins, buttons []Button, submit Submitter, opts ...Option) *Poller {
	p := &Poller{
		pins:        pins,
		buttons:     buttons,
		submit:      submit,
		interval:    10 * time.Millisecond,
		releasePoll: 10 * time.Millisecond,
		maxHold:     10 * time.Second,
		logger:      zap.NewNop(),
		values:      make([]int, len(buttons)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("button polling started", zap.Int("buttons", len(p.buttons)))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("button polling stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Start runs the poller in the background until ctx is done. The returned
// Pins wrap the poller's lines: Close stops polling and waits for it to
// return before the lines are released.
func (p *Poller) Start(ctx context.Context) Pins {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return &polledPins{Pins: p.pins, stop: func() {
		cancel()
		<-done
	}}
}

type polledPins struct {
	Pins
	stop func()
}

func (pp *polledPins) Close() error {
	pp.stop()
	return pp.Pins.Close()
}

// Poll performs one polling pass and reports the command submitted, if any.
// Inputs are not read while the cooldown window is open.
func (p *Poller) Poll(ctx context.Context) (model.Command, bool) {
	if p.submit.CooldownActive() {
		return "", false
	}
	if err := p.pins.Values(p.values); err != nil {
		p.logger.Warn("reading buttons", zap.Error(err))
		return "", false
	}

	for i, b := range p.buttons {
		if p.values[i] != pressed {
			continue
		}
		if err := p.waitRelease(ctx, i); err != nil {
			if errors.Is(err, errHeld) {
				p.logger.Warn("button held too long, ignoring press",
					zap.String("command", string(b.Command)),
					zap.Duration("max_hold", p.maxHold),
				)
			}
			return "", false
		}
		p.submit.SubmitNow(model.SourceButton, b.Command)
		return b.Command, true
	}
	return "", false
}

var errHeld = errors.New("input: button held")

// waitRelease sleeps in short steps until line i reads released. It never
// touches the arbiter.
func (p *Poller) waitRelease(ctx context.Context, i int) error {
	deadline := time.Now().Add(p.maxHold)
	for {
		if err := p.pins.Values(p.values); err != nil {
			return err
		}
		if p.values[i] != pressed {
			return nil
		}
		if time.Now().After(deadline) {
			return errHeld
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.releasePoll):
		}
	}
}
