// Package controller runs the main loop that feeds camera frames to the
// recorder and redraws the screen, and owns the ordered shutdown.
package controller

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/arbiter"
	"github.com/pitabwire/inspector/internal/capture"
	"github.com/pitabwire/inspector/internal/display"
	"github.com/pitabwire/inspector/internal/observability"
	"github.com/pitabwire/inspector/internal/redraw"
	"github.com/pitabwire/inspector/internal/workflow"
)

// Camera is a source of raw frames.
type Camera interface {
	Frames() <-chan capture.Frame
	Close() error
}

// Recorder is the recording lifecycle as seen by the main loop.
type Recorder interface {
	Run(ctx context.Context)
	WriteFrame(data []byte)
	Stop(ctx context.Context) error
	Archive(ctx context.Context)
	Filename() string
}

// Renderer draws screens.
type Renderer interface {
	Render(v workflow.View) *image.RGBA
	Shutdown() *image.RGBA
	Blank() *image.RGBA
}

// Observer receives main loop metrics.
type Observer interface {
	RecordFrame()
	RecordFrameStall()
	RecordRender(d time.Duration, err error)
}

// Config holds the main loop timings.
type Config struct {
	StallTimeout time.Duration
	ShutdownHold time.Duration
	BlankHold    time.Duration
}

// Dependencies are the collaborators the controller drives. Pins and
// Observer may be nil.
type Dependencies struct {
	Arbiter  *arbiter.Arbiter
	Trigger  *redraw.Trigger
	Camera   Camera
	Recorder Recorder
	Renderer Renderer
	Display  display.Display
	Pins     io.Closer
	Observer Observer
	Logger   *zap.Logger
}

// Controller is constructed once per process. Shutdown may be called from
// any goroutine, any number of times.
type Controller struct {
	cfg  Config
	deps Dependencies
	log  *zap.Logger

	sleep func(time.Duration)

	shutdownOnce sync.Once

	mu           sync.Mutex
	stopRecorder context.CancelFunc
	recorderDone chan struct{}

	// screenMu serializes display writes between the main loop and
	// Shutdown. released is set once the shutdown screen takes over.
	screenMu sync.Mutex
	released bool
}

// New returns a controller.
func New(cfg Config, deps Dependencies) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 2 * time.Second
	}
	return &Controller{
		cfg:   cfg,
		deps:  deps,
		log:   deps.Logger,
		sleep: time.Sleep,
	}
}

// Run loops until ctx is done or a panic escapes an iteration, then runs
// Shutdown. A recovered panic is returned as an error.
func (c *Controller) Run(ctx context.Context) (err error) {
	recCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.mu.Lock()
	c.stopRecorder, c.recorderDone = cancel, done
	c.mu.Unlock()
	go func() {
		defer close(done)
		c.deps.Recorder.Run(recCtx)
	}()

	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("main loop panic", zap.Any("panic", rec), zap.Stack("stack"))
			err = fmt.Errorf("controller: main loop panic: %v", rec)
		}
		c.Shutdown(context.WithoutCancel(ctx))
	}()

	c.log.Info("main loop started")
	c.redraw()

	watchdog := time.NewTicker(c.cfg.StallTimeout)
	defer watchdog.Stop()

	frames := c.deps.Camera.Frames()
	lastFrame := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("main loop stopping", zap.Error(context.Cause(ctx)))
			return nil

		case f, ok := <-frames:
			if !ok {
				c.log.Warn("camera frame channel closed")
				frames = nil
				continue
			}
			lastFrame = time.Now()
			if c.deps.Observer != nil {
				c.deps.Observer.RecordFrame()
			}
			c.deps.Recorder.WriteFrame(f.Data)

		case <-c.deps.Trigger.C():
			c.redraw()

		case <-watchdog.C:
			if stalled := time.Since(lastFrame); stalled >= c.cfg.StallTimeout {
				c.log.Warn("no camera frames", zap.Duration("since_last", stalled.Round(time.Millisecond)))
				if c.deps.Observer != nil {
					c.deps.Observer.RecordFrameStall()
				}
			}
		}
	}
}

// redraw renders and shows the current screen if the state changed since
// the last call.
func (c *Controller) redraw() {
	view, ok := c.deps.Arbiter.TakeView()
	if !ok {
		return
	}
	view.Recording = c.deps.Recorder.Filename()

	c.screenMu.Lock()
	defer c.screenMu.Unlock()
	if c.released {
		return
	}
	start := time.Now()
	err := c.deps.Display.Show(c.deps.Renderer.Render(view))
	if c.deps.Observer != nil {
		c.deps.Observer.RecordRender(time.Since(start), err)
	}
	if err != nil {
		c.log.Warn("display update failed", zap.Error(err))
		return
	}
	c.log.Debug("screen rendered", zap.Stringer("stage", view.Stage))
}

// Shutdown releases everything in order: stop accepting commands, release
// the camera, finalize and archive the recording, show the shutdown screen,
// blank and clear the display, then release the buttons. Every step runs
// even if an earlier one failed. Concurrent callers wait for the first one
// to finish.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		ctx, span := observability.StartSpan(ctx, "controller.shutdown")
		defer span.End()
		c.log.Info("shutting down")

		c.deps.Arbiter.Close()

		if err := c.deps.Camera.Close(); err != nil {
			c.log.Warn("releasing camera", zap.Error(err))
		}

		if err := c.deps.Recorder.Stop(ctx); err != nil {
			c.log.Error("finalizing recording", zap.Error(err))
		}
		c.mu.Lock()
		stop, done := c.stopRecorder, c.recorderDone
		c.mu.Unlock()
		if stop != nil {
			stop()
			<-done
		}
		c.deps.Recorder.Archive(ctx)

		c.screenMu.Lock()
		c.released = true
		c.show("shutdown screen", c.deps.Renderer.Shutdown())
		c.sleep(c.cfg.ShutdownHold)
		c.show("blank screen", c.deps.Renderer.Blank())
		c.sleep(c.cfg.BlankHold)
		if err := c.deps.Display.Clear(); err != nil {
			c.log.Warn("clearing display", zap.Error(err))
		}
		if err := c.deps.Display.Close(); err != nil {
			c.log.Warn("closing display", zap.Error(err))
		}
		c.screenMu.Unlock()

		if c.deps.Pins != nil {
			if err := c.deps.Pins.Close(); err != nil {
				c.log.Warn("releasing buttons", zap.Error(err))
			} else {
				c.log.Info("buttons released")
			}
		}

		c.log.Info("shutdown complete")
	})
}

func (c *Controller) show(what string, img image.Image) {
	if err := c.deps.Display.Show(img); err != nil {
		c.log.Warn("showing "+what, zap.Error(err))
	}
}
