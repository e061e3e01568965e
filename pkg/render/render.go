// Package render draws cards into bitmaps. The same card renders with the
// same relative placement at any viewport size because every position is
// resolved through the percent-space layout.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/photocard/pkg/coords"
	"github.com/menta2k/photocard/pkg/layout"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

var (
	ErrRender          = errors.New("render failed, please retry")
	ErrNotReady        = errors.New("card needs a photo and a name before export")
	ErrInvalidViewport = errors.New("invalid viewport")
)

// BoldWeight is the smallest font weight drawn with the bold face
const BoldWeight = 600

// ExportQuality is the JPEG quality used for exported cards
const ExportQuality = 85

// Viewport is the size a card is laid out at, and the pixel density it is
// rasterized with.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// Pixels returns the output bitmap size
func (v Viewport) Pixels() (int, int) {
	s := v.scale()
	return int(math.Round(float64(v.Width) * s)), int(math.Round(float64(v.Height) * s))
}

func (v Viewport) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// Renderer composes the template background, the card photo and the two
// text labels.
type Renderer struct {
	mu         sync.RWMutex
	template   image.Image
	background color.NRGBA

	regular *opentype.Font
	bold    *opentype.Font
	log     logrus.FieldLogger
}

// New creates a renderer with a white background and the Go fonts
func New(log logrus.FieldLogger) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Renderer{
		background: color.NRGBA{255, 255, 255, 255},
		regular:    regular,
		bold:       bold,
		log:        log,
	}, nil
}

// SetTemplate sets the background image. A nil image falls back to the
// solid background color.
func (r *Renderer) SetTemplate(img image.Image) {
	r.mu.Lock()
	r.template = img
	r.mu.Unlock()
}

// LoadTemplate decodes and sets the background image
func (r *Renderer) LoadTemplate(data []byte) error {
	img, _, err := raster.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode template: %w", err)
	}
	r.SetTemplate(img)
	return nil
}

// SetBackground sets the color used when no template is loaded
func (r *Renderer) SetBackground(hex string) error {
	c, err := ParseHexColor(hex)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.background = c
	r.mu.Unlock()
	return nil
}

// Render draws the card at the viewport size
func (r *Renderer) Render(card layout.Card, vp Viewport) (*image.NRGBA, error) {
	w, h := vp.Pixels()
	if w <= 0 || h <= 0 || w > raster.MaxSide || h > raster.MaxSide {
		return nil, fmt.Errorf("%w: %dx%d at %gx", ErrInvalidViewport, vp.Width, vp.Height, vp.Scale)
	}
	box := coords.Container{Width: float64(w), Height: float64(h)}

	canvas := r.drawBackground(w, h)

	if blob := card.Photo(); blob != nil {
		var err error
		canvas, err = r.drawPhoto(canvas, box, card, blob)
		if err != nil {
			r.log.WithError(err).WithField("card", card.ID).Error("photo render failed")
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}

	texts := []struct {
		value string
		pos   types.Point
		style types.TextStyle
	}{
		{card.Name, card.NamePosition, card.NameStyle},
		{card.Title, card.TitlePosition, card.TitleStyle},
	}
	for _, t := range texts {
		if strings.TrimSpace(t.value) == "" {
			continue
		}
		if err := r.drawText(canvas, box, t.value, t.pos, t.style, vp.scale()); err != nil {
			r.log.WithError(err).WithField("card", card.ID).Error("text render failed")
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}

	return canvas, nil
}

// Export renders a ready card and encodes it
func (r *Renderer) Export(card layout.Card, vp Viewport, format raster.Format) ([]byte, error) {
	if !card.Ready() {
		return nil, ErrNotReady
	}
	img, err := r.Render(card, vp)
	if err != nil {
		return nil, err
	}
	return Encode(img, format)
}

// Encode writes a rendered card. JPEG output uses the export quality.
func Encode(img image.Image, format raster.Format) ([]byte, error) {
	data, err := raster.EncodeBytes(img, format, raster.EncodeOptions{Quality: ExportQuality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return data, nil
}

func (r *Renderer) drawBackground(w, h int) *image.NRGBA {
	r.mu.RLock()
	tpl, bg := r.template, r.background
	r.mu.RUnlock()

	if tpl != nil {
		return imaging.Fill(tpl, w, h, imaging.Center, imaging.Lanczos)
	}
	return imaging.New(w, h, bg)
}

func (r *Renderer) drawPhoto(canvas *image.NRGBA, box coords.Container, card layout.Card, blob *types.Blob) (*image.NRGBA, error) {
	photo, _, err := raster.Decode(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	size := box.PhotoPixelSize(card.PhotoSize)
	pw, ph := int(math.Round(size.Width)), int(math.Round(size.Height))
	if pw <= 0 || ph <= 0 {
		return canvas, nil
	}
	tl := box.ToPixelTopLeft(card.PhotoPosition, size)

	fitted := imaging.Fill(photo, pw, ph, imaging.Center, imaging.Lanczos)
	return imaging.Overlay(canvas, fitted, image.Pt(int(math.Round(tl.X)), int(math.Round(tl.Y))), 1.0), nil
}

func (r *Renderer) drawText(dst *image.NRGBA, box coords.Container, text string, pos types.Point, style types.TextStyle, scale float64) error {
	col, err := ParseHexColor(style.Color)
	if err != nil {
		return err
	}
	f := r.regular
	if style.Weight >= BoldWeight {
		f = r.bold
	}
	size := float64(style.FontSize) * scale
	if size <= 0 {
		return nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("font face: %w", err)
	}
	defer face.Close()

	center := box.ToPixelCenter(pos)
	advance := font.MeasureString(face, text)
	m := face.Metrics()

	x := fixed.Int26_6(math.Round(center.X*64)) - advance/2
	y := fixed.Int26_6(math.Round(center.Y*64)) + (m.Ascent-m.Descent)/2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	d.DrawString(text)
	return nil
}

// ParseHexColor parses #rgb or #rrggbb
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
