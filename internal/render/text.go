package render

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// anchor selects which point of the text box sits at the given coordinate.
type anchor int

const (
	topLeft anchor = iota
	center
	topRight
)

// drawText draws s with its anchor point at (x, y).
func drawText(dst *image.RGBA, face font.Face, c color.Color, x, y int, a anchor, s string) {
	m := face.Metrics()
	width := font.MeasureString(face, s)

	dot := fixed.P(x, y)
	switch a {
	case topLeft:
		dot.Y += m.Ascent
	case center:
		dot.X -= width / 2
		dot.Y += (m.Ascent - m.Descent) / 2
	case topRight:
		dot.X -= width
		dot.Y += m.Ascent
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(s)
}

// lineHeight is the vertical advance between wrapped lines.
func lineHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil() + 2
}

// wrap splits text into lines no wider than maxWidth pixels. A word wider than
// maxWidth gets a line of its own.
func wrap(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	limit := fixed.I(maxWidth)

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if font.MeasureString(face, candidate) <= limit {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// drawWrapped draws text wrapped to maxWidth starting at top y and returns
// the y just below the last line. Centered lines are centered on the canvas
// width, others start at x.
func drawWrapped(dst *image.RGBA, face font.Face, c color.Color, x, y, maxWidth int, centered bool, text string) int {
	h := lineHeight(face)
	for _, line := range wrap(face, text, maxWidth) {
		if centered {
			w := font.MeasureString(face, line).Ceil()
			drawText(dst, face, c, (dst.Bounds().Dx()-w)/2, y, topLeft, line)
		} else {
			drawText(dst, face, c, x, y, topLeft, line)
		}
		y += h
	}
	return y
}
