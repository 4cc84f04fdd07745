package render

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"

	"github.com/pitabwire/inspector/internal/config"
)

// Faces are the four text styles used on every screen.
type Faces struct {
	Header font.Face
	Large  font.Face
	Body   font.Face
	Label  font.Face
}

// BasicFaces returns the built-in bitmap face for every style.
func BasicFaces() *Faces {
	f := basicfont.Face7x13
	return &Faces{Header: f, Large: f, Body: f, Label: f}
}

// LoadFaces parses the TrueType or OpenType font at path and builds one face
// per configured size. An empty path returns BasicFaces.
func LoadFaces(path string, sizes config.FontSizes) (*Faces, error) {
	if path == "" {
		return BasicFaces(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: reading font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("render: parsing font %s: %w", path, err)
	}

	face := func(size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	var faces Faces
	for _, s := range []struct {
		dst  *font.Face
		size float64
	}{
		{&faces.Header, sizes.Header},
		{&faces.Large, sizes.Large},
		{&faces.Body, sizes.Body},
		{&faces.Label, sizes.Label},
	} {
		fc, err := face(s.size)
		if err != nil {
			return nil, fmt.Errorf("render: font %s at %.0fpt: %w", path, s.size, err)
		}
		*s.dst = fc
	}
	return &faces, nil
}
