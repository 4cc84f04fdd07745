package events

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/workflow"
)

// Publisher delivers one payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// DefaultBuffer is the number of events queued before new ones are dropped.
const DefaultBuffer = 64

// Option configures an Emitter.
type Option func(*Emitter)

// WithEncoder overrides EncodeJSON.
func WithEncoder(enc Encoder) Option {
	return func(e *Emitter) { e.encode = enc }
}

// WithBuffer overrides DefaultBuffer.
func WithBuffer(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan Event, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Emitter) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// Emitter queues events and publishes them from Run. It satisfies the
// arbiter and recording observer interfaces, so it can be registered next
// to the metrics. Every observer method returns immediately; when the queue
// is full the event is dropped and counted.
type Emitter struct {
	pub    Publisher
	prefix string
	device string
	encode Encoder
	queue  chan Event
	logger *zap.Logger
	now    func() time.Time

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewEmitter returns an Emitter publishing to prefix/<kind> on behalf of
// device.
func NewEmitter(pub Publisher, prefix, device string, opts ...Option) *Emitter {
	e := &Emitter{
		pub:    pub,
		prefix: prefix,
		device: device,
		encode: EncodeJSON,
		queue:  make(chan Event, DefaultBuffer),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Topic returns the topic events of kind k are published on.
func (e *Emitter) Topic(k Kind) string {
	if e.prefix == "" {
		return string(k)
	}
	return e.prefix + "/" + string(k)
}

// Emit stamps ev and queues it.
func (e *Emitter) Emit(ev Event) {
	ev.At = e.now()
	ev.Device = e.device
	select {
	case e.queue <- ev:
	default:
		if n := e.dropped.Add(1); n == 1 || n%100 == 0 {
			e.logger.Warn("event queue full, dropping", zap.String("kind", string(ev.Kind)), zap.Uint64("dropped", n))
		}
	}
}

// Run publishes queued events until ctx is done, then publishes whatever is
// still queued and returns.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.logger.Info("event publishing stopped",
				zap.Uint64("published", e.published.Load()),
				zap.Uint64("failed", e.failed.Load()),
				zap.Uint64("dropped", e.dropped.Load()),
			)
			return
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ev)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ev Event) {
	payload, err := e.encode(ev)
	if err != nil {
		e.failed.Add(1)
		e.logger.Error("event encoding failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}
	if err := e.pub.Publish(e.Topic(ev.Kind), payload); err != nil {
		if n := e.failed.Add(1); n == 1 || n%100 == 0 {
			e.logger.Warn("event publish failed",
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("failed", n),
				zap.Error(err),
			)
		}
		return
	}
	e.published.Add(1)
}

// Published, Failed and Dropped report delivery counts.
func (e *Emitter) Published() uint64 { return e.published.Load() }
func (e *Emitter) Failed() uint64    { return e.failed.Load() }
func (e *Emitter) Dropped() uint64   { return e.dropped.Load() }

// RecordCommand publishes every submitted command with its outcome.
func (e *Emitter) RecordCommand(source, command, outcome string) {
	e.Emit(Event{Kind: KindCommand, Source: source, Command: command, Outcome: outcome})
}

// SetStage publishes a stage change.
func (e *Emitter) SetStage(stage workflow.Stage) {
	e.Emit(Event{Kind: KindStage, Stage: stage.String()})
}

// SetRecording publishes the recording starting or stopping.
func (e *Emitter) SetRecording(active bool) {
	state := "stopped"
	if active {
		state = "started"
	}
	e.Emit(Event{Kind: KindRecording, State: state})
}

// RecordFrameWriteFailure is not published; the metrics carry it.
func (e *Emitter) RecordFrameWriteFailure() {}

// RecordArchive publishes the archive result.
func (e *Emitter) RecordArchive(result string) {
	e.Emit(Event{Kind: KindArchive, Result: result})
}
