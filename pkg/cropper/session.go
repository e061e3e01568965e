package cropper

import (
	"image"

	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

// Session holds the live pan/zoom state of one crop interaction. The
// visible frame is the largest aspect-locked rectangle that fits the image,
// shrunk by the zoom factor. Every change is clamped immediately so the
// frame never leaves the image.
//
// A Session is owned by a single caller and is not safe for concurrent use.
type Session struct {
	engine *Engine
	src    image.Image
	w, h   float64

	zoom   float64
	cx, cy float64
	region *types.CropRegion
}

// NewSession starts a crop interaction on src, framed at the image center
// with the minimum zoom.
func (e *Engine) NewSession(src image.Image) (*Session, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrNoImage
	}
	b := src.Bounds()
	s := &Session{engine: e, src: src, w: float64(b.Dx()), h: float64(b.Dy())}
	s.reset()
	return s, nil
}

func (s *Session) reset() {
	s.zoom = s.engine.config.MinZoom
	s.cx, s.cy = s.w/2, s.h/2
	s.region = nil
}

// Zoom returns the current zoom factor
func (s *Session) Zoom() float64 {
	return s.zoom
}

// Center returns the frame center in source pixels
func (s *Session) Center() (float64, float64) {
	return s.cx, s.cy
}

// SetZoom changes the zoom factor, clamped to the configured range, and
// re-clamps the frame position.
func (s *Session) SetZoom(z float64) {
	s.zoom = raster.Clamp(z, s.engine.config.MinZoom, s.engine.config.MaxZoom)
	s.clampCenter()
}

// Pan moves the frame by (dx, dy) source pixels
func (s *Session) Pan(dx, dy float64) {
	s.cx += dx
	s.cy += dy
	s.clampCenter()
}

// SetCenter moves the frame center to (x, y) source pixels
func (s *Session) SetCenter(x, y float64) {
	s.cx, s.cy = x, y
	s.clampCenter()
}

// CenterOn moves the frame center to a normalized [0,1] image position
func (s *Session) CenterOn(fx, fy float64) {
	s.SetCenter(raster.Clamp(fx, 0, 1)*s.w, raster.Clamp(fy, 0, 1)*s.h)
}

// Frame returns the visible frame size in source pixels
func (s *Session) Frame() (float64, float64) {
	bw, bh := fitAspect(s.w, s.h, s.engine.config.Aspect.Value())
	return bw / s.zoom, bh / s.zoom
}

func (s *Session) clampCenter() {
	fw, fh := s.Frame()
	s.cx = raster.Clamp(s.cx, fw/2, s.w-fw/2)
	s.cy = raster.Clamp(s.cy, fh/2, s.h-fh/2)
}

// Complete records the pixel region for the current pan/zoom. It is called
// when an interaction ends.
func (s *Session) Complete() types.CropRegion {
	fw, fh := s.Frame()
	r := roundRegion(s.cx-fw/2, s.cy-fh/2, fw, fh, s.zoom, int(s.w), int(s.h))
	s.region = &r
	return r
}

// Region returns the last completed region, if any
func (s *Session) Region() (types.CropRegion, bool) {
	if s.region == nil {
		return types.CropRegion{}, false
	}
	return *s.region, true
}

// Save rasterizes the completed region. When no region has been completed
// yet the call does nothing and reports ok=false.
func (s *Session) Save() (res CropResult, ok bool, err error) {
	if s.region == nil {
		return CropResult{}, false, nil
	}
	res, err = s.engine.Crop(s.src, *s.region, 0)
	if err != nil {
		return CropResult{}, false, err
	}
	return res, true, nil
}

// Cancel discards all pending pan, zoom and region state
func (s *Session) Cancel() {
	s.reset()
}
