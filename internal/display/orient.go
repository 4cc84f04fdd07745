package display

import (
	"image"
	"image/draw"
)

// Oriented rotates and mirrors frames before passing them on.
type Oriented struct {
	inner  Display
	rotate int
	mirror bool
}

// NewOriented wraps inner. rotate is in degrees counter-clockwise and must be
// a multiple of 90. Mirroring flips left to right after rotating.
func NewOriented(inner Display, rotate int, mirror bool) *Oriented {
	return &Oriented{inner: inner, rotate: normalizeRotation(rotate), mirror: mirror}
}

func (o *Oriented) Show(img image.Image) error {
	return o.inner.Show(Transform(img, o.rotate, o.mirror))
}

func (o *Oriented) Clear() error { return o.inner.Clear() }

func (o *Oriented) Close() error { return o.inner.Close() }

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// OrientedSize is the size of a w x h frame after rotation.
func OrientedSize(w, h, rotate int) (int, int) {
	switch normalizeRotation(rotate) {
	case 90, 270:
		return h, w
	}
	return w, h
}

// Transform returns a copy of src rotated counter-clockwise by rotate degrees
// and then optionally mirrored.
func Transform(src image.Image, rotate int, mirror bool) *image.RGBA {
	b := src.Bounds()
	in := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(in, in.Bounds(), src, b.Min, draw.Src)

	rotate = normalizeRotation(rotate)
	if rotate == 0 && !mirror {
		return in
	}

	w, h := b.Dx(), b.Dy()
	ow, oh := OrientedSize(w, h, rotate)
	out := image.NewRGBA(image.Rect(0, 0, ow, oh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch rotate {
			case 90:
				dx, dy = y, w-1-x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = h-1-y, x
			default:
				dx, dy = x, y
			}
			if mirror {
				dx = ow - 1 - dx
			}
			out.SetRGBA(dx, dy, in.RGBAAt(x, y))
		}
	}
	return out
}
