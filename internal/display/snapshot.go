package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Snapshot writes every frame to a PNG file, replacing it atomically. It
// stands in for a panel on development machines.
type Snapshot struct {
	path   string
	width  int
	height int
}

// NewSnapshot returns a snapshot display writing to path.
func NewSnapshot(path string, width, height int) *Snapshot {
	return &Snapshot{path: path, width: width, height: height}
}

func (s *Snapshot) Show(img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.png")
	if err != nil {
		return fmt.Errorf("display: snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("display: encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("display: snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("display: snapshot: %w", err)
	}
	return nil
}

// Clear writes a black frame.
func (s *Snapshot) Clear() error {
	blank := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i := 3; i < len(blank.Pix); i += 4 {
		blank.Pix[i] = 0xff
	}
	return s.Show(blank)
}

func (s *Snapshot) Close() error { return nil }
