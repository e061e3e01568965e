// Package photocard composes photo cards: an uploaded photo is normalized,
// optionally cropped to the 3:4 card frame, and placed together with a name
// and a title on a card template.
//
// Basic usage:
//
//	studio, err := photocard.New(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	card := studio.CreateCard()
//	card, res, err := studio.Upload(ctx, card.ID, types.SourceRef{Filename: "me.jpg"}, data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if res.TooSmall {
//		log.Println("photo may look blurry when printed")
//	}
//
//	card, _ = studio.Store().SetName(card.ID, "Ada Lovelace")
//	card, _ = studio.AutoCrop(ctx, card.ID, 1)
//	jpeg, err := studio.Export(card.ID, studio.Viewport(), raster.JPEG)
//
// The package wires five components:
//
//  1. Normalizer (pkg/normalizer): orientation fix and safe downscaling
//  2. Cropper (pkg/cropper): aspect-locked crop sessions and rasterization
//  3. Layout store (pkg/layout): percent-space card layout
//  4. Coordinate mapping (pkg/coords): percent to pixel and back
//  5. Renderer (pkg/render): preview and export bitmaps
//
// Optional focus locators (pkg/focus) pre-position the crop frame on the
// photo's subject.
package photocard

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard/internal/config"
	"github.com/menta2k/photocard/pkg/client"
	"github.com/menta2k/photocard/pkg/cropper"
	"github.com/menta2k/photocard/pkg/focus"
	"github.com/menta2k/photocard/pkg/layout"
	"github.com/menta2k/photocard/pkg/llamacpp"
	"github.com/menta2k/photocard/pkg/normalizer"
	"github.com/menta2k/photocard/pkg/ollama"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/render"
	"github.com/menta2k/photocard/pkg/types"
)

// Version of the photocard library
const Version = "1.0.0"

var ErrNoPhoto = errors.New("card has no photo")

// Studio provides a high-level interface over the card pipeline
type Studio struct {
	normalizer *normalizer.Normalizer
	cropper    *cropper.Engine
	store      *layout.Store
	renderer   *render.Renderer
	focus      *focus.Chain

	viewport render.Viewport
	format   raster.Format
	log      logrus.FieldLogger
}

// New creates a Studio with the default configuration
func New(log logrus.FieldLogger) (*Studio, error) {
	return NewFromConfig(config.Default(), log)
}

// NewFromConfig creates a Studio from an application configuration
func NewFromConfig(cfg *config.Config, log logrus.FieldLogger) (*Studio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	normFormat, err := raster.ParseFormat(cfg.Normalizer.Format)
	if err != nil {
		return nil, err
	}
	cropFormat, err := raster.ParseFormat(cfg.Cropper.Format)
	if err != nil {
		return nil, err
	}
	exportFormat, err := raster.ParseFormat(cfg.Render.Format)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(log.WithField("component", "render"))
	if err != nil {
		return nil, err
	}
	if err := renderer.SetBackground(cfg.Render.Background); err != nil {
		return nil, err
	}
	if cfg.Render.Template != "" {
		data, err := os.ReadFile(cfg.Render.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}
		if err := renderer.LoadTemplate(data); err != nil {
			return nil, err
		}
	}

	s := &Studio{
		normalizer: normalizer.NewWithConfig(normalizer.Config{
			MaxDimension: cfg.Normalizer.MaxDimension,
			MinDimension: cfg.Normalizer.MinDimension,
			Quality:      cfg.Normalizer.Quality,
			Format:       normFormat,
		}, log.WithField("component", "normalizer")),
		cropper: cropper.NewWithConfig(cropper.CropConfig{
			Aspect:  cropper.Portrait,
			MinZoom: cfg.Cropper.MinZoom,
			MaxZoom: cfg.Cropper.MaxZoom,
			Format:  cropFormat,
		}, log.WithField("component", "cropper")),
		store:    layout.NewStore(log.WithField("component", "layout")),
		renderer: renderer,
		viewport: render.Viewport{Width: cfg.Render.Width, Height: cfg.Render.Height, Scale: cfg.Render.Scale},
		format:   exportFormat,
		log:      log,
	}

	var locators []focus.Locator
	if cfg.Focus.URL != "" {
		vc, err := newVisionClient(cfg.Focus)
		if err != nil {
			return nil, fmt.Errorf("focus: %w", err)
		}
		locators = append(locators, focus.NewVision(vc, focus.VisionConfig{
			Model:         cfg.Focus.Model,
			MinConfidence: cfg.Focus.MinConfidence,
		}))
	}
	if cfg.Focus.Saliency {
		locators = append(locators, focus.NewSaliency(focus.DefaultSaliencyConfig()))
	}
	s.focus = focus.NewChain(log.WithField("component", "focus"), locators...)

	return s, nil
}

// newVisionClient connects to the configured vision model server
func newVisionClient(cfg config.FocusConfig) (client.VisionClient, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Backend {
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL, &http.Client{})
		if err != nil {
			return nil, err
		}
		c.SetTimeout(timeout)
		return c, nil
	case "", "ollama":
		c, err := ollama.NewClient(cfg.URL, &http.Client{})
		if err != nil {
			return nil, err
		}
		c.SetTimeout(timeout)
		return c, nil
	}
	return nil, fmt.Errorf("unknown vision backend %q", cfg.Backend)
}

// Store returns the layout store
func (s *Studio) Store() *layout.Store { return s.store }

// Renderer returns the card renderer
func (s *Studio) Renderer() *render.Renderer { return s.renderer }

// Normalizer returns the photo normalizer
func (s *Studio) Normalizer() *normalizer.Normalizer { return s.normalizer }

// Cropper returns the crop engine
func (s *Studio) Cropper() *cropper.Engine { return s.cropper }

// Viewport returns the default export viewport
func (s *Studio) Viewport() render.Viewport { return s.viewport }

// Format returns the default export format
func (s *Studio) Format() raster.Format { return s.format }

// SetFocus replaces the crop focus locators
func (s *Studio) SetFocus(locators ...focus.Locator) {
	s.focus = focus.NewChain(s.log.WithField("component", "focus"), locators...)
}

// CreateCard adds a card with the default layout
func (s *Studio) CreateCard() layout.Card {
	return s.store.Create()
}

// Upload normalizes a photo and stores it on the card. Decode failures leave
// the card untouched.
func (s *Studio) Upload(ctx context.Context, id string, src types.SourceRef, data []byte) (layout.Card, types.NormalizationResult, error) {
	if _, err := s.store.Get(id); err != nil {
		return layout.Card{}, types.NormalizationResult{}, err
	}
	if src.Size == 0 {
		src.Size = len(data)
	}

	res, err := s.normalizer.Normalize(ctx, data)
	if err != nil {
		return layout.Card{}, types.NormalizationResult{}, err
	}

	format, _ := raster.ParseFormat(res.Format)
	card, err := s.store.SetSource(id, src, types.Blob{
		Data:     res.Data,
		MimeType: format.MimeType(),
		Width:    res.Width,
		Height:   res.Height,
	})
	if err != nil {
		return layout.Card{}, types.NormalizationResult{}, err
	}
	return card, res, nil
}

// Photo decodes the card's normalized photo
func (s *Studio) Photo(id string) (image.Image, error) {
	card, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if card.Normalized.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoPhoto, id)
	}
	img, _, err := raster.Decode(card.Normalized.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored photo: %w", err)
	}
	return img, nil
}

// BeginCrop opens a crop session on the card's normalized photo, framed on
// the suggested focus point.
func (s *Studio) BeginCrop(ctx context.Context, id string) (*cropper.Session, error) {
	img, err := s.Photo(id)
	if err != nil {
		return nil, err
	}
	session, err := s.cropper.NewSession(img)
	if err != nil {
		return nil, err
	}
	p := s.focus.Suggest(ctx, img)
	session.CenterOn(p.X, p.Y)
	return session, nil
}

// SaveCrop stores the session's completed region on the card. Without a
// completed region nothing changes and ok is false.
func (s *Studio) SaveCrop(id string, session *cropper.Session) (card layout.Card, ok bool, err error) {
	res, ok, err := session.Save()
	if err != nil {
		return layout.Card{}, false, err
	}
	if !ok {
		card, err = s.store.Get(id)
		return card, false, err
	}
	card, err = s.storeCrop(id, res)
	return card, err == nil, err
}

// Crop rasterizes an explicit region of the card's normalized photo
func (s *Studio) Crop(id string, region types.CropRegion) (layout.Card, error) {
	img, err := s.Photo(id)
	if err != nil {
		return layout.Card{}, err
	}
	b := img.Bounds()
	if !region.Within(b.Dx(), b.Dy()) {
		return layout.Card{}, fmt.Errorf("%w: %+v in %dx%d", cropper.ErrInvalidRegion, region, b.Dx(), b.Dy())
	}
	res, err := s.cropper.Crop(img, region, 0)
	if err != nil {
		return layout.Card{}, err
	}
	return s.storeCrop(id, res)
}

// AutoCrop crops the card's photo around the suggested focus point
func (s *Studio) AutoCrop(ctx context.Context, id string, zoom float64) (layout.Card, error) {
	session, err := s.BeginCrop(ctx, id)
	if err != nil {
		return layout.Card{}, err
	}
	if zoom > 0 {
		cx, cy := session.Center()
		session.SetZoom(zoom)
		session.SetCenter(cx, cy)
	}
	session.Complete()
	card, _, err := s.SaveCrop(id, session)
	return card, err
}

func (s *Studio) storeCrop(id string, res cropper.CropResult) (layout.Card, error) {
	b := res.Image.Bounds()
	return s.store.SetCropped(id, res.Region, types.Blob{
		Data:     res.Data,
		MimeType: res.Format.MimeType(),
		Width:    b.Dx(),
		Height:   b.Dy(),
	})
}

// Render draws the card for preview at the given viewport
func (s *Studio) Render(id string, vp render.Viewport) (*image.NRGBA, error) {
	card, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(card, vp)
}

// Export renders and encodes a ready card
func (s *Studio) Export(id string, vp render.Viewport, format raster.Format) ([]byte, error) {
	card, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = s.format
	}
	return s.renderer.Export(card, vp, format)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
