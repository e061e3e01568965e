// Package raster provides a small 2D raster surface with canvas-like
// transform semantics. A Surface is owned by a single caller; concurrent
// pipelines must each allocate their own.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MaxSide bounds the side of any surface to keep allocations sane
const MaxSide = 16384

var (
	ErrInvalidSize = errors.New("raster: invalid surface size")
)

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Surface is a drawable NRGBA bitmap with a current transformation matrix.
// Transform calls compose the same way a 2D canvas context does: each call
// post-multiplies the current matrix, so the last call is applied first to
// drawn geometry.
type Surface struct {
	img    *image.NRGBA
	m      f64.Aff3
	saved  []f64.Aff3
	interp draw.Interpolator
}

// Allocate creates a transparent w x h surface
func Allocate(w, h int) (*Surface, error) {
	if w <= 0 || h <= 0 || w > MaxSide || h > MaxSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	return &Surface{
		img:    image.NewNRGBA(image.Rect(0, 0, w, h)),
		m:      identity,
		interp: draw.CatmullRom,
	}, nil
}

// SetInterpolator selects the resampling kernel used by DrawSource when the
// transform is not a pure integer translation.
func (s *Surface) SetInterpolator(in draw.Interpolator) {
	if in != nil {
		s.interp = in
	}
}

// Width returns the surface width in pixels
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height returns the surface height in pixels
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Bounds returns the surface rectangle
func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// Image returns the backing bitmap. The caller must not keep drawing on the
// surface while using it.
func (s *Surface) Image() *image.NRGBA { return s.img }

// Save pushes the current transform
func (s *Surface) Save() {
	s.saved = append(s.saved, s.m)
}

// Restore pops the last saved transform
func (s *Surface) Restore() {
	if n := len(s.saved); n > 0 {
		s.m = s.saved[n-1]
		s.saved = s.saved[:n-1]
	}
}

// ResetTransform sets the transform back to identity
func (s *Surface) ResetTransform() {
	s.m = identity
}

// Transform returns the current transformation matrix
func (s *Surface) Transform() f64.Aff3 {
	return s.m
}

// Translate moves the origin by (x, y)
func (s *Surface) Translate(x, y float64) {
	s.m = mul(s.m, f64.Aff3{1, 0, x, 0, 1, y})
}

// Scale scales subsequent drawing by (x, y)
func (s *Surface) Scale(x, y float64) {
	s.m = mul(s.m, f64.Aff3{x, 0, 0, 0, y, 0})
}

// Rotate rotates subsequent drawing clockwise (y axis pointing down) by the
// given angle in radians.
func (s *Surface) Rotate(rad float64) {
	sin, cos := math.Sincos(rad)
	sin, cos = snap(sin), snap(cos)
	s.m = mul(s.m, f64.Aff3{cos, -sin, 0, sin, cos, 0})
}

// RotateDegrees is Rotate with the angle in degrees
func (s *Surface) RotateDegrees(deg float64) {
	s.Rotate(deg * math.Pi / 180)
}

// Fill paints the whole surface with c, ignoring the transform
func (s *Surface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawSource draws src into the user-space rectangle (x, y, w, h) through
// the current transform.
func (s *Surface) DrawSource(src image.Image, x, y, w, h float64) {
	sb := src.Bounds()
	if sb.Empty() || w == 0 || h == 0 {
		return
	}
	s2d := mul(s.m, f64.Aff3{1, 0, x, 0, 1, y})
	s2d = mul(s2d, f64.Aff3{w / float64(sb.Dx()), 0, 0, 0, h / float64(sb.Dy()), 0})
	s2d = mul(s2d, f64.Aff3{1, 0, -float64(sb.Min.X), 0, 1, -float64(sb.Min.Y)})

	if dx, dy, ok := integerTranslation(s2d); ok {
		r := sb.Add(image.Pt(dx, dy))
		draw.Draw(s.img, r, src, sb.Min, draw.Over)
		return
	}
	s.interp.Transform(s.img, s2d, src, sb, draw.Over, nil)
}

// DrawImage draws src at its natural size with its top-left at (x, y)
func (s *Surface) DrawImage(src image.Image, x, y float64) {
	b := src.Bounds()
	s.DrawSource(src, x, y, float64(b.Dx()), float64(b.Dy()))
}

// ReadRegion copies the pixels of r (clipped to the surface) into a new
// bitmap whose origin is (0, 0).
func (s *Surface) ReadRegion(r image.Rectangle) *image.NRGBA {
	return imaging.Crop(s.img, r)
}

// ReadAll copies the whole surface
func (s *Surface) ReadAll() *image.NRGBA {
	return imaging.Clone(s.img)
}

// PutRegion writes src onto the surface with src's top-left placed at
// (dx, dy), replacing the covered pixels. Pixels falling outside the surface
// are discarded. The transform is ignored.
func (s *Surface) PutRegion(src image.Image, dx, dy int) {
	sb := src.Bounds()
	r := image.Rect(dx, dy, dx+sb.Dx(), dy+sb.Dy())
	draw.Draw(s.img, r, src, sb.Min, draw.Src)
}

// mul returns m * n
func mul(m, n f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

// snap removes floating point noise around 0 and ±1 so that quarter turns
// stay exact.
func snap(v float64) float64 {
	const eps = 1e-12
	switch {
	case math.Abs(v) < eps:
		return 0
	case math.Abs(v-1) < eps:
		return 1
	case math.Abs(v+1) < eps:
		return -1
	}
	return v
}

func integerTranslation(m f64.Aff3) (int, int, bool) {
	if m[0] != 1 || m[1] != 0 || m[3] != 0 || m[4] != 1 {
		return 0, 0, false
	}
	if m[2] != math.Trunc(m[2]) || m[5] != math.Trunc(m[5]) {
		return 0, 0, false
	}
	return int(m[2]), int(m[5]), true
}
