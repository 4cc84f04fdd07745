// Package display puts rendered frames on the local screen.
package display

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/config"
)

// Display shows frames. Implementations are used from a single goroutine.
type Display interface {
	Show(img image.Image) error
	Clear() error
	Close() error
}

// Open builds the configured driver wrapped with the configured orientation.
func Open(cfg config.DisplayConfig, logger *zap.Logger) (Display, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, h := OrientedSize(cfg.Width, cfg.Height, cfg.Rotate)

	var inner Display
	switch cfg.Driver {
	case config.DisplayFramebuffer:
		fb, err := OpenFramebuffer(cfg.Device, w, h)
		if err != nil {
			return nil, err
		}
		inner = fb
	case config.DisplaySnapshot:
		inner = NewSnapshot(cfg.SnapshotPath, w, h)
	case config.DisplayNone:
		inner = None{}
	default:
		return nil, fmt.Errorf("display: unknown driver %q", cfg.Driver)
	}

	logger.Info("display opened",
		zap.String("driver", cfg.Driver),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("rotate", cfg.Rotate),
		zap.Bool("mirror", cfg.Mirror),
	)
	return NewOriented(inner, cfg.Rotate, cfg.Mirror), nil
}

// None discards every frame.
type None struct{}

func (None) Show(image.Image) error { return nil }
func (None) Clear() error           { return nil }
func (None) Close() error           { return nil }
