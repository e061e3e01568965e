package normalizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard/pkg/orientation"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

// ErrDecode is returned when the input bytes cannot be decoded as an image
var ErrDecode = errors.New("failed to decode image")

// Config holds configuration for photo normalization
type Config struct {
	MaxDimension int
	MinDimension int
	Quality      int
	Format       raster.Format
}

// DefaultConfig returns the standard normalization settings
func DefaultConfig() Config {
	return Config{
		MaxDimension: 2000,
		MinDimension: 300,
		Quality:      92,
		Format:       raster.JPEG,
	}
}

// Normalizer corrects orientation, bounds the size and re-encodes photos.
// It holds no mutable state and may be shared between goroutines.
type Normalizer struct {
	config Config
	parser orientation.Parser
	log    logrus.FieldLogger
}

// New creates a Normalizer with default configuration
func New(log logrus.FieldLogger) *Normalizer {
	return NewWithConfig(DefaultConfig(), log)
}

// NewWithConfig creates a Normalizer with custom configuration. Zero fields
// fall back to their defaults.
func NewWithConfig(config Config, log logrus.FieldLogger) *Normalizer {
	def := DefaultConfig()
	if config.MaxDimension <= 0 {
		config.MaxDimension = def.MaxDimension
	}
	if config.MinDimension < 0 {
		config.MinDimension = def.MinDimension
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	if config.Format == "" {
		config.Format = def.Format
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Normalizer{config: config, parser: orientation.NewEXIF(), log: log}
}

// SetOrientationParser replaces the EXIF reader
func (n *Normalizer) SetOrientationParser(p orientation.Parser) {
	n.parser = p
}

// Config returns the active configuration
func (n *Normalizer) Config() Config {
	return n.config
}

// Plan describes the geometry of a normalization before any pixel work
type Plan struct {
	Rotation     int
	SourceWidth  int
	SourceHeight int
	Scale        float64
	TargetWidth  int
	TargetHeight int
}

// PlanFor computes rotation, scale and target size for a decoded w x h
// bitmap. The scale never exceeds 1.
func (n *Normalizer) PlanFor(w, h int, o orientation.Orientation) Plan {
	rotatedW, rotatedH := w, h
	if o.SwapsAxes() {
		rotatedW, rotatedH = h, w
	}
	scale := math.Min(1, float64(n.config.MaxDimension)/float64(max(rotatedW, rotatedH)))
	return Plan{
		Rotation:     o.Rotation(),
		SourceWidth:  w,
		SourceHeight: h,
		Scale:        scale,
		TargetWidth:  max(1, int(math.Round(float64(rotatedW)*scale))),
		TargetHeight: max(1, int(math.Round(float64(rotatedH)*scale))),
	}
}

// Normalize decodes data, bakes the EXIF rotation into the pixels, bounds
// the longest side to MaxDimension and re-encodes the result.
func (n *Normalizer) Normalize(ctx context.Context, data []byte) (types.NormalizationResult, error) {
	if err := ctx.Err(); err != nil {
		return types.NormalizationResult{}, err
	}

	orient := orientation.Resolve(n.parser, data)

	src, format, err := raster.Decode(data)
	if err != nil {
		return types.NormalizationResult{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return types.NormalizationResult{}, fmt.Errorf("%w: empty image", ErrDecode)
	}

	if err := ctx.Err(); err != nil {
		return types.NormalizationResult{}, err
	}

	plan := n.PlanFor(b.Dx(), b.Dy(), orient)
	n.log.WithFields(logrus.Fields{
		"format":      format,
		"orientation": int(orient),
		"source":      fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"target":      fmt.Sprintf("%dx%d", plan.TargetWidth, plan.TargetHeight),
		"scale":       plan.Scale,
	}).Debug("normalizing photo")

	surface, err := raster.Allocate(plan.TargetWidth, plan.TargetHeight)
	if err != nil {
		return types.NormalizationResult{}, fmt.Errorf("failed to allocate surface: %w", err)
	}
	Draw(surface, src, plan)
	out := surface.Image()

	encoded, err := raster.EncodeBytes(out, n.config.Format, raster.EncodeOptions{Quality: n.config.Quality})
	if err != nil {
		return types.NormalizationResult{}, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	result := types.NormalizationResult{
		Image:       out,
		Data:        encoded,
		Format:      string(n.config.Format),
		Width:       plan.TargetWidth,
		Height:      plan.TargetHeight,
		TooSmall:    min(plan.TargetWidth, plan.TargetHeight) < n.config.MinDimension,
		Orientation: int(orient),
	}
	if result.TooSmall {
		n.log.WithFields(logrus.Fields{
			"width":   result.Width,
			"height":  result.Height,
			"minimum": n.config.MinDimension,
		}).Warn("photo is smaller than recommended and may look blurry")
	}
	return result, nil
}

// Draw paints src onto a target-sized surface with the plan's rotation
// applied about the surface, the same way a 2D canvas would.
func Draw(s *raster.Surface, src image.Image, plan Plan) {
	tw, th := float64(s.Width()), float64(s.Height())

	s.Save()
	defer s.Restore()
	switch plan.Rotation {
	case 90:
		s.Translate(tw, 0)
		s.Rotate(math.Pi / 2)
	case -90:
		s.Translate(0, th)
		s.Rotate(-math.Pi / 2)
	case 180:
		s.Translate(tw, th)
		s.Rotate(math.Pi)
	}

	drawW, drawH := tw, th
	if plan.Rotation == 90 || plan.Rotation == -90 {
		drawW, drawH = th, tw
	}
	s.DrawSource(src, 0, 0, drawW, drawH)
}
