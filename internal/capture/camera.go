package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"go.uber.org/zap"
)

// Frame is one raw RGB frame copied out of the camera pipeline.
type Frame struct {
	Seq  uint64
	At   time.Time
	Data []byte
}

// CameraOption configures a Camera.
type CameraOption func(*Camera)

// WithRetryPause sets how long the camera waits before restarting its
// pipeline after an error.
func WithRetryPause(d time.Duration) CameraOption {
	return func(c *Camera) { c.retryPause = d }
}

// WithRestartBackoff sets how many consecutive failures open the restart
// breaker and how long it then holds restarts off.
func WithRestartBackoff(threshold int, backoff time.Duration) CameraOption {
	return func(c *Camera) { c.breaker = newRestartBreaker(threshold, backoff) }
}

// WithCameraLogger sets the logger.
func WithCameraLogger(l *zap.Logger) CameraOption {
	return func(c *Camera) { c.logger = l }
}

// Camera delivers frames from a V4L2 device on a channel. Frames that arrive
// while the consumer is busy are dropped.
type Camera struct {
	settings   Settings
	pipeline   *gst.Pipeline
	sink       *app.Sink
	frames     chan Frame
	retryPause time.Duration
	breaker    *restartBreaker
	logger     *zap.Logger

	seq     atomic.Uint64
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenCamera builds the camera pipeline and starts it playing.
func OpenCamera(ctx context.Context, s Settings, opts ...CameraOption) (*Camera, error) {
	gst.Init(nil)

	c := &Camera{
		settings:   s,
		frames:     make(chan Frame, 2),
		retryPause: time.Second,
		breaker:    newRestartBreaker(DefaultRestartThreshold, DefaultRestartBackoff),
		logger:     zap.NewNop(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	pipeline, err := gst.NewPipelineFromString(cameraLaunch(s))
	if err != nil {
		return nil, fmt.Errorf("capture: camera pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(sinkName)
	if err != nil {
		return nil, fmt.Errorf("capture: camera sink: %w", err)
	}
	c.pipeline = pipeline
	c.sink = app.SinkFromElement(elem)
	c.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("capture: starting camera: %w", err)
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.monitor(monitorCtx)

	c.logger.Info("camera started",
		zap.String("device", s.Device),
		zap.Int("width", s.Width),
		zap.Int("height", s.Height),
		zap.Float64("fps", s.FPS),
	)
	return c, nil
}

// Frames returns the frame channel. It is closed by Close.
func (c *Camera) Frames() <-chan Frame {
	return c.frames
}

// Dropped returns the number of frames dropped because the consumer was busy.
func (c *Camera) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Camera) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	frame := Frame{
		Seq:  c.seq.Add(1),
		At:   time.Now(),
		Data: make([]byte, len(data)),
	}
	copy(frame.Data, data)
	buffer.Unmap()

	if c.breaker.RecordSuccess() {
		c.logger.Info("camera recovered")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gst.FlowEOS
	}
	select {
	case c.frames <- frame:
	default:
		c.dropped.Add(1)
	}
	return gst.FlowOK
}

// monitor watches the pipeline bus. An error or end of stream restarts the
// pipeline after the retry pause, or after the breaker backoff once restarts
// keep failing.
func (c *Camera) monitor(ctx context.Context) {
	defer close(c.done)
	bus := c.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			c.logger.Warn("camera pipeline error",
				zap.String("error", gerr.Error()),
				zap.String("debug", gerr.DebugString()),
			)
			c.restart(ctx)
		case gst.MessageEOS:
			c.logger.Warn("camera stream ended")
			c.restart(ctx)
		case gst.MessageStateChanged:
			if msg.Source() == c.pipeline.GetName() {
				old, cur := msg.ParseStateChanged()
				c.logger.Debug("camera state changed",
					zap.String("from", fmt.Sprint(old)),
					zap.String("to", fmt.Sprint(cur)),
				)
			}
		}
	}
}

func (c *Camera) restart(ctx context.Context) {
	_ = c.pipeline.SetState(gst.StateNull)

	if c.breaker.RecordFailure() {
		c.logger.Warn("camera keeps failing, backing off restarts",
			zap.Int("failures", c.breaker.threshold),
			zap.Duration("backoff", c.breaker.backoff),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.breaker.Delay(c.retryPause)):
		}

		if err := c.pipeline.SetState(gst.StatePlaying); err != nil {
			c.logger.Warn("camera restart failed", zap.Error(err))
			c.breaker.RecordFailure()
			continue
		}
		c.logger.Info("camera restarted", zap.Stringer("breaker", c.breaker.State()))
		return
	}
}

// Close stops the pipeline and closes the frame channel. It is safe to call
// more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.frames)
	c.mu.Unlock()

	c.cancel()
	<-c.done

	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("capture: stopping camera: %w", err)
	}
	c.logger.Info("camera released",
		zap.Uint64("frames", c.seq.Load()),
		zap.Uint64("dropped", c.dropped.Load()),
	)
	return nil
}
