// Package focus suggests where the initial crop frame should be centered.
package focus

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard/pkg/raster"
)

// Point is a position normalized to [0,1] on both axes
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center is the image center
var Center = Point{X: 0.5, Y: 0.5}

// Clamp keeps the point inside the unit square
func (p Point) Clamp() Point {
	return Point{X: raster.Clamp(p.X, 0, 1), Y: raster.Clamp(p.Y, 0, 1)}
}

// Locator finds the point a crop should be centered on
type Locator interface {
	Locate(ctx context.Context, img image.Image) (Point, error)
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(ctx context.Context, img image.Image) (Point, error)

// Locate calls f
func (f LocatorFunc) Locate(ctx context.Context, img image.Image) (Point, error) {
	return f(ctx, img)
}

// Chain tries each locator in order and returns the first answer. When all
// of them fail the image center is returned.
type Chain struct {
	locators []Locator
	log      logrus.FieldLogger
}

// NewChain creates a chain of locators. Nil entries are skipped.
func NewChain(log logrus.FieldLogger, locators ...Locator) *Chain {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	c := &Chain{log: log}
	for _, l := range locators {
		if l != nil {
			c.locators = append(c.locators, l)
		}
	}
	return c
}

// Suggest returns the focus point for img. It never fails.
func (c *Chain) Suggest(ctx context.Context, img image.Image) Point {
	for i, l := range c.locators {
		if ctx.Err() != nil {
			break
		}
		p, err := l.Locate(ctx, img)
		if err != nil {
			c.log.WithError(err).WithField("locator", i).Debug("focus locator failed")
			continue
		}
		return p.Clamp()
	}
	return Center
}
