// Package orientation reads the EXIF orientation tag of a photo. Reading is
// best effort: any failure is reported as "no orientation" and never as an
// error.
package orientation

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (1-8)
type Orientation int

const (
	Normal    Orientation = 1
	Rotate180 Orientation = 3
	Rotate90  Orientation = 6 // stored pixels must be turned 90° clockwise
	Rotate270 Orientation = 8 // stored pixels must be turned 90° counter-clockwise
)

// Rotation returns the clockwise rotation in degrees that must be applied to
// the stored pixels. Only the four rotation cases are honoured; mirrored
// orientations and unknown values map to 0.
func (o Orientation) Rotation() int {
	switch o {
	case Rotate180:
		return 180
	case Rotate90:
		return 90
	case Rotate270:
		return -90
	default:
		return 0
	}
}

// SwapsAxes reports whether applying the rotation swaps width and height
func (o Orientation) SwapsAxes() bool {
	r := o.Rotation()
	return r == 90 || r == -90
}

// Parser extracts an orientation from raw image bytes
type Parser interface {
	Parse(data []byte) (Orientation, bool)
}

// ParserFunc adapts a function to the Parser interface
type ParserFunc func(data []byte) (Orientation, bool)

// Parse calls f(data)
func (f ParserFunc) Parse(data []byte) (Orientation, bool) {
	return f(data)
}

// EXIF reads the orientation tag from the TIFF/IFD0 EXIF block
type EXIF struct{}

// NewEXIF creates an EXIF orientation parser
func NewEXIF() *EXIF {
	return &EXIF{}
}

// Parse returns the orientation tag if present and readable
func (EXIF) Parse(data []byte) (o Orientation, ok bool) {
	// The decoder panics on some truncated inputs; treat that like any other
	// unreadable block.
	defer func() {
		if r := recover(); r != nil {
			o, ok = Normal, false
		}
	}()

	if len(data) == 0 {
		return Normal, false
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Normal, false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return Normal, false
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return Normal, false
	}
	return Orientation(v), true
}

// Resolve runs the parser and falls back to Normal on any failure
func Resolve(p Parser, data []byte) Orientation {
	if p == nil {
		return Normal
	}
	if o, ok := p.Parse(data); ok {
		return o
	}
	return Normal
}
