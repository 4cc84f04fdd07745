package display

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Framebuffer writes RGB565 frames to a Linux framebuffer device such as the
// SPI panel at /dev/fb1.
type Framebuffer struct {
	f      *os.File
	width  int
	height int
	buf    []byte
}

// OpenFramebuffer opens the device for a width x height panel.
func OpenFramebuffer(path string, width, height int) (*Framebuffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("display: opening framebuffer %s: %w", path, err)
	}
	return &Framebuffer{
		f:      f,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*2),
	}, nil
}

// Show scales img to the panel when the sizes differ and writes it.
func (fb *Framebuffer) Show(img image.Image) error {
	src := img
	if b := img.Bounds(); b.Dx() != fb.width || b.Dy() != fb.height {
		scaled := image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)
		src = scaled
	}
	encodeRGB565(fb.buf, src)
	if _, err := fb.f.WriteAt(fb.buf, 0); err != nil {
		return fmt.Errorf("display: writing framebuffer: %w", err)
	}
	return nil
}

// Clear writes an all-black frame.
func (fb *Framebuffer) Clear() error {
	clear(fb.buf)
	if _, err := fb.f.WriteAt(fb.buf, 0); err != nil {
		return fmt.Errorf("display: clearing framebuffer: %w", err)
	}
	return nil
}

// Close releases the device.
func (fb *Framebuffer) Close() error {
	return fb.f.Close()
}

// encodeRGB565 packs img into dst as little-endian RGB565, row by row.
func encodeRGB565(dst []byte, img image.Image) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			binary.LittleEndian.PutUint16(dst[i:], rgb565(img.At(x, y)))
			i += 2
		}
	}
}

func rgb565(c color.Color) uint16 {
	r, g, b, _ := c.RGBA()
	return uint16((r>>11)<<11 | (g>>10)<<5 | b>>11)
}
