// Package coords converts between the percent-space card layout and the
// pixel space of a concrete rendering container.
//
// Positions are stored as the percentage of the container width/height at
// which an element's center sits. Rendering turns them into pixels for the
// container at hand; interactions report pixels back, and a commit turns
// those into percentages again. Nothing pixel-based is ever stored.
package coords

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

var (
	ErrInvalidContainer = errors.New("container has no area")
	ErrNotResizable     = errors.New("element cannot be resized")
)

// MinPhotoWidth is the smallest photo width in pixels a resize may produce
const MinPhotoWidth = 24.0

// PixelPoint is a position in container pixels
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelSize is an element size in container pixels
type PixelSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Container is the pixel box a card is currently rendered into
type Container struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the container has a positive area
func (c Container) Valid() bool {
	return c.Width > 0 && c.Height > 0 && !math.IsInf(c.Width, 0) && !math.IsInf(c.Height, 0)
}

// ToPixelCenter maps a percent-space center to container pixels
func (c Container) ToPixelCenter(p types.Point) PixelPoint {
	return PixelPoint{
		X: p.X.Fraction() * c.Width,
		Y: p.Y.Fraction() * c.Height,
	}
}

// ToPixelTopLeft returns where an element of the given pixel size must be
// placed so that its center lands on the percent-space center.
func (c Container) ToPixelTopLeft(center types.Point, size PixelSize) PixelPoint {
	p := c.ToPixelCenter(center)
	return PixelPoint{X: p.X - size.Width/2, Y: p.Y - size.Height/2}
}

// PhotoPixelSize derives the photo box from its stored width. The height
// follows from the 3:4 aspect lock.
func (c Container) PhotoPixelSize(s types.PhotoSize) PixelSize {
	w := s.Width.Fraction() * c.Width
	return PixelSize{Width: w, Height: w / types.PhotoAspect}
}

// Commit is a layout change produced at the end of an interaction. Exactly
// one of Position and Size is set.
type Commit struct {
	Element  types.ElementType `json:"element"`
	Position *types.Point      `json:"position,omitempty"`
	Size     *types.PhotoSize  `json:"size,omitempty"`
}

// CommitPosition converts an observed top-left corner and size into the
// element's percent-space center, rounded to one decimal.
func (c Container) CommitPosition(el types.ElementType, topLeft PixelPoint, size PixelSize) (Commit, error) {
	if !c.Valid() {
		return Commit{}, fmt.Errorf("%w: %gx%g", ErrInvalidContainer, c.Width, c.Height)
	}
	cx := topLeft.X + size.Width/2
	cy := topLeft.Y + size.Height/2
	p := types.Point{
		X: types.RoundPercent(cx / c.Width * 100),
		Y: types.RoundPercent(cy / c.Height * 100),
	}
	return Commit{Element: el, Position: &p}, nil
}

// CommitPhotoSize converts a photo pixel width into a percent-space width.
// The height is never committed.
func (c Container) CommitPhotoSize(pixelWidth float64) (Commit, error) {
	if !c.Valid() {
		return Commit{}, fmt.Errorf("%w: %gx%g", ErrInvalidContainer, c.Width, c.Height)
	}
	s := types.PhotoSize{Width: types.RoundPercent(pixelWidth / c.Width * 100)}
	return Commit{Element: types.ElementPhoto, Size: &s}, nil
}

// Gesture is an interaction in progress on one element. It is created when
// the interaction begins and produces a Commit when it ends; intermediate
// moves never touch the layout.
type Gesture struct {
	c       Container
	element types.ElementType
	origin  PixelPoint
	size    PixelSize
}

// Begin starts an interaction on an element currently drawn at topLeft with
// the given pixel size.
func (c Container) Begin(el types.ElementType, topLeft PixelPoint, size PixelSize) (*Gesture, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidContainer, c.Width, c.Height)
	}
	return &Gesture{c: c, element: el, origin: topLeft, size: size}, nil
}

// Element returns the element being manipulated
func (g *Gesture) Element() types.ElementType {
	return g.element
}

// Move returns the clamped top-left corner after dragging by (dx, dy). The
// element box never leaves the container.
func (g *Gesture) Move(dx, dy float64) PixelPoint {
	return PixelPoint{
		X: raster.Clamp(g.origin.X+dx, 0, math.Max(0, g.c.Width-g.size.Width)),
		Y: raster.Clamp(g.origin.Y+dy, 0, math.Max(0, g.c.Height-g.size.Height)),
	}
}

// CommitDelta ends a drag that moved the element by (dx, dy) pixels
func (g *Gesture) CommitDelta(dx, dy float64) (Commit, error) {
	return g.c.CommitPosition(g.element, g.Move(dx, dy), g.size)
}

// Resize returns the clamped photo size for a requested pixel width. The
// stored position is the photo's center, so the box grows around that
// center and never leaves the container.
func (g *Gesture) Resize(width float64) PixelSize {
	cx := g.origin.X + g.size.Width/2
	cy := g.origin.Y + g.size.Height/2
	maxW := math.Min(2*math.Min(cx, g.c.Width-cx), 2*math.Min(cy, g.c.Height-cy)*types.PhotoAspect)
	maxW = math.Max(maxW, 0)
	w := raster.Clamp(width, math.Min(MinPhotoWidth, maxW), maxW)
	return PixelSize{Width: w, Height: w / types.PhotoAspect}
}

// CommitSize ends a resize of the photo to the requested pixel width
func (g *Gesture) CommitSize(width float64) (Commit, error) {
	if g.element != types.ElementPhoto {
		return Commit{}, fmt.Errorf("%w: %s", ErrNotResizable, g.element)
	}
	w := g.Resize(width).Width
	commit, err := g.c.CommitPhotoSize(w)
	if err != nil {
		return Commit{}, err
	}
	// one-decimal rounding must not push the box past the clamp
	if commit.Size.Width.Fraction()*g.c.Width > w+1e-9 {
		commit.Size.Width = types.Percent(math.Floor(w/g.c.Width*1000+1e-9) / 10)
	}
	return commit, nil
}
