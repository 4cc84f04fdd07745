// Package capture drives the camera and the session encoder through
// GStreamer pipelines.
package capture

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
)

// Fallback camera parameters used when the configured values are unusable.
const (
	FallbackWidth  = 640
	FallbackHeight = 480
	FallbackFPS    = 20.0
	MaxFPS         = 60.0

	// rowAlign is the byte alignment GStreamer applies to each row of a
	// packed RGB buffer.
	rowAlign = 4
)

// Settings describes the raw frames flowing from the camera to the encoder.
type Settings struct {
	Device string
	Width  int
	Height int
	FPS    float64
}

// Stride is the byte length of one row, padded to rowAlign.
func (s Settings) Stride() int {
	return (s.Width*3 + rowAlign - 1) &^ (rowAlign - 1)
}

// FrameSize is the byte length of one RGB frame including row padding.
func (s Settings) FrameSize() int {
	return s.Stride() * s.Height
}

// Normalize replaces out-of-range size and rate values with the fallbacks,
// logging a warning for each replacement. Widths are rounded down to a
// multiple of 4 so rows carry no padding and camera and encoder buffers have
// the same layout.
func Normalize(s Settings, logger *zap.Logger) Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Width > 0 && s.Width%rowAlign != 0 {
		aligned := s.Width - s.Width%rowAlign
		logger.Warn("camera width not a multiple of 4, rounding down",
			zap.Int("width", s.Width),
			zap.Int("aligned_width", aligned),
		)
		s.Width = aligned
	}
	if s.Width <= 0 || s.Height <= 0 {
		logger.Warn("invalid camera size, using fallback",
			zap.Int("width", s.Width),
			zap.Int("height", s.Height),
			zap.Int("fallback_width", FallbackWidth),
			zap.Int("fallback_height", FallbackHeight),
		)
		s.Width, s.Height = FallbackWidth, FallbackHeight
	}
	if s.FPS <= 0 || s.FPS > MaxFPS {
		logger.Warn("invalid camera fps, using fallback",
			zap.Float64("fps", s.FPS),
			zap.Float64("fallback_fps", FallbackFPS),
		)
		s.FPS = FallbackFPS
	}
	return s
}

// ProbeDevice checks that the capture device node exists.
func ProbeDevice(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("capture: device %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("capture: device %s is a directory", path)
	}
	return nil
}

// rawCaps builds the caps string shared by the camera sink and the encoder
// source.
func rawCaps(s Settings) string {
	num, den := framerate(s.FPS)
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/%d",
		s.Width, s.Height, num, den)
}

// framerate expresses fps as a reduced fraction with millisecond precision,
// so 29.97 becomes 2997/100 and 0.5 becomes 1/2.
func framerate(fps float64) (num, den int) {
	num, den = int(math.Round(fps*1000)), 1000
	if num <= 0 {
		return 0, 1
	}
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// cameraLaunch is the camera pipeline description:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → appsink
func cameraLaunch(s Settings) string {
	return fmt.Sprintf(
		"v4l2src device=%s ! videoconvert ! videoscale ! videorate drop-only=true ! %s ! "+
			"appsink name=%s sync=false max-buffers=1 drop=true",
		s.Device, rawCaps(s), sinkName)
}

// encoderLaunch is the encoder pipeline description:
//
//	appsrc → videoconvert → x264enc → mp4mux → filesink
func encoderLaunch(s Settings, path string) string {
	return fmt.Sprintf(
		"appsrc name=%s is-live=true do-timestamp=true format=time caps=\"%s\" ! "+
			"videoconvert ! x264enc tune=zerolatency speed-preset=ultrafast ! mp4mux ! "+
			"filesink location=\"%s\"",
		srcName, rawCaps(s), path)
}

const (
	sinkName = "frames"
	srcName  = "feed"
)
