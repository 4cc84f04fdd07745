package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"go.uber.org/zap"
)

// ErrNotOpen is returned by encoder operations before Open succeeds.
var ErrNotOpen = errors.New("capture: encoder not open")

// Encoder writes raw RGB frames into an H.264 MP4 file. Finalize pushes end
// of stream so the muxer writes a playable index.
type Encoder struct {
	settings Settings
	logger   *zap.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	src      *app.Source
	path     string
}

// NewEncoder returns an encoder for frames described by s.
func NewEncoder(s Settings, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{settings: s, logger: logger}
}

// Open builds the encoder pipeline writing to path and starts it.
func (e *Encoder) Open(path string) error {
	gst.Init(nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pipeline != nil {
		return fmt.Errorf("capture: encoder already open on %s", e.path)
	}

	pipeline, err := gst.NewPipelineFromString(encoderLaunch(e.settings, path))
	if err != nil {
		return fmt.Errorf("capture: encoder pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(srcName)
	if err != nil {
		return fmt.Errorf("capture: encoder source: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return fmt.Errorf("capture: starting encoder: %w", err)
	}

	e.pipeline = pipeline
	e.src = app.SrcFromElement(elem)
	e.path = path
	e.logger.Info("encoder opened", zap.String("path", path))
	return nil
}

// WriteFrame pushes one frame. Frames of the wrong size are rejected so a
// mis-negotiated camera cannot corrupt the stream.
func (e *Encoder) WriteFrame(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return ErrNotOpen
	}
	if want := e.settings.FrameSize(); len(data) != want {
		return fmt.Errorf("capture: frame is %d bytes, want %d", len(data), want)
	}
	if ret := e.src.PushBuffer(gst.NewBufferFromBytes(data)); ret != gst.FlowOK {
		return fmt.Errorf("capture: push buffer: %v", ret)
	}
	return nil
}

// Finalize ends the stream, waits for the muxer to flush until ctx is done,
// and releases the pipeline. A second call is a no-op.
func (e *Encoder) Finalize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pipeline == nil {
		return nil
	}
	pipeline := e.pipeline
	e.pipeline, e.src = nil, nil

	defer func() {
		_ = pipeline.SetState(gst.StateNull)
	}()

	src, err := pipeline.GetElementByName(srcName)
	if err != nil {
		return fmt.Errorf("capture: encoder source: %w", err)
	}
	if ret := app.SrcFromElement(src).EndStream(); ret != gst.FlowOK {
		return fmt.Errorf("capture: end of stream: %v", ret)
	}

	bus := pipeline.GetPipelineBus()
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("capture: waiting for end of stream on %s: %w", e.path, err)
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			e.logger.Info("encoder finalized", zap.String("path", e.path))
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("capture: encoder error: %s (%s)", gerr.Error(), gerr.DebugString())
		}
	}
}
