package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

var (
	ErrInvalidRegion = errors.New("crop region outside image bounds")
	ErrNoImage       = errors.New("no image to crop")
)

// AspectRatio represents a width:height ratio
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Value returns the ratio as width / height
func (a AspectRatio) Value() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Common aspect ratios
var (
	Square    = AspectRatio{1, 1, "square"}
	Portrait  = AspectRatio{3, 4, "portrait"}
	Landscape = AspectRatio{4, 3, "landscape"}
)

// CropConfig holds configuration for interactive cropping
type CropConfig struct {
	Aspect  AspectRatio
	MinZoom float64
	MaxZoom float64
	Format  raster.Format
}

// DefaultConfig returns the card photo crop settings: a 3:4 frame, zoom
// between 1 and 4 and lossless PNG output.
func DefaultConfig() CropConfig {
	return CropConfig{
		Aspect:  Portrait,
		MinZoom: 1,
		MaxZoom: 4,
		Format:  raster.PNG,
	}
}

// Engine rasterizes crop regions of normalized photos
type Engine struct {
	config CropConfig
	log    logrus.FieldLogger
}

// New creates a new Engine with default configuration
func New(log logrus.FieldLogger) *Engine {
	return NewWithConfig(DefaultConfig(), log)
}

// NewWithConfig creates a new Engine with custom configuration
func NewWithConfig(config CropConfig, log logrus.FieldLogger) *Engine {
	def := DefaultConfig()
	if config.Aspect.Width <= 0 || config.Aspect.Height <= 0 {
		config.Aspect = def.Aspect
	}
	if config.MinZoom < 1 {
		config.MinZoom = def.MinZoom
	}
	if config.MaxZoom < config.MinZoom {
		config.MaxZoom = math.Max(def.MaxZoom, config.MinZoom)
	}
	if config.Format == "" {
		config.Format = def.Format
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Engine{config: config, log: log}
}

// Config returns the active configuration
func (e *Engine) Config() CropConfig {
	return e.config
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image  *image.NRGBA
	Data   []byte
	Format raster.Format
	Region types.CropRegion
}

// Rasterize copies region out of src into a bitmap of exactly
// region.Width x region.Height. The source is first drawn centered on a
// square working surface twice as large as its longest side so that a
// rotation about the center never clips it.
func (e *Engine) Rasterize(src image.Image, region types.CropRegion, rotation float64) (*image.NRGBA, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidRegion, region.Width, region.Height)
	}
	if !rotatedBounds(w, h, rotation).Intersect(region.Rect()).Eq(region.Rect()) {
		return nil, fmt.Errorf("%w: %+v in %dx%d rotated %g", ErrInvalidRegion, region, w, h, rotation)
	}

	safe := 2 * max(w, h)
	work, err := raster.Allocate(safe, safe)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate working surface: %w", err)
	}
	half := float64(safe) / 2
	work.Translate(half, half)
	work.RotateDegrees(rotation)
	work.Translate(-half, -half)

	drawX, drawY := (safe-w)/2, (safe-h)/2
	work.DrawImage(src, float64(drawX), float64(drawY))

	out, err := raster.Allocate(region.Width, region.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate crop surface: %w", err)
	}
	out.PutRegion(work.Image(), -drawX-region.X, -drawY-region.Y)

	e.log.WithFields(logrus.Fields{
		"region":   fmt.Sprintf("%dx%d@%d,%d", region.Width, region.Height, region.X, region.Y),
		"rotation": rotation,
		"zoom":     region.Zoom,
	}).Debug("rasterized crop")

	return out.Image(), nil
}

// Crop rasterizes region and encodes it losslessly
func (e *Engine) Crop(src image.Image, region types.CropRegion, rotation float64) (CropResult, error) {
	img, err := e.Rasterize(src, region, rotation)
	if err != nil {
		return CropResult{}, err
	}
	data, err := e.Encode(img)
	if err != nil {
		return CropResult{}, err
	}
	return CropResult{Image: img, Data: data, Format: e.config.Format, Region: region}, nil
}

// Encode writes img in the configured lossless format
func (e *Engine) Encode(img image.Image) ([]byte, error) {
	data, err := raster.EncodeBytes(img, e.config.Format, raster.EncodeOptions{Quality: 100, Lossless: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return data, nil
}

// FitRegion returns the largest aspect-locked region centered in a w x h
// image at zoom 1. Used as the initial crop when the user accepts the
// default framing.
func (e *Engine) FitRegion(w, h int) types.CropRegion {
	bw, bh := fitAspect(float64(w), float64(h), e.config.Aspect.Value())
	return roundRegion((float64(w)-bw)/2, (float64(h)-bh)/2, bw, bh, 1, w, h)
}

// rotatedBounds returns the box covered by a w x h image rotated by deg
// about its center, in the unrotated image's pixel coordinates.
func rotatedBounds(w, h int, deg float64) image.Rectangle {
	if math.Mod(deg, 360) == 0 {
		return image.Rect(0, 0, w, h)
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	bw := float64(w)*cos + float64(h)*sin
	bh := float64(w)*sin + float64(h)*cos
	x0 := int(math.Floor((float64(w)-bw)/2 + 1e-9))
	y0 := int(math.Floor((float64(h)-bh)/2 + 1e-9))
	x1 := int(math.Ceil((float64(w)+bw)/2 - 1e-9))
	y1 := int(math.Ceil((float64(h)+bh)/2 - 1e-9))
	return image.Rect(x0, y0, x1, y1)
}

// fitAspect returns the largest rectangle of the given aspect inside w x h
func fitAspect(w, h, aspect float64) (float64, float64) {
	if w/h > aspect {
		return h * aspect, h
	}
	return w, w / aspect
}

// roundRegion converts a floating rectangle to whole pixels while keeping it
// inside the w x h image.
func roundRegion(x, y, cw, ch, zoom float64, w, h int) types.CropRegion {
	rw := min(max(1, int(math.Round(cw))), w)
	rh := min(max(1, int(math.Round(ch))), h)
	rx := min(max(0, int(math.Round(x))), w-rw)
	ry := min(max(0, int(math.Round(y))), h-rh)
	return types.CropRegion{X: rx, Y: ry, Width: rw, Height: rh, Zoom: zoom}
}
