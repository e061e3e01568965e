package focus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photocard/pkg/client"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

// DefaultPrompt asks the model for the dominant subject of a portrait photo
const DefaultPrompt = `You are an image subject locator for a portrait photo card.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (at most 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box should tightly include the person's head and shoulders; if there is no person, the visually dominant subject.
- cx and cy are the center of the face when a face is visible, otherwise the center of the box.
- Do not guess real identities.
- If no subject is found, return:
  {"primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},"description":"centered generic scene"}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var ErrLowConfidence = errors.New("vision model is not confident about the subject")

// VisionConfig holds configuration for the vision model locator
type VisionConfig struct {
	Model         string  `json:"model"`
	Prompt        string  `json:"prompt"`
	MinConfidence float64 `json:"min_confidence"`
	// MaxSide is the longest side of the preview sent to the model
	MaxSide int `json:"max_side"`
}

// Vision locates the subject by asking a multimodal model
type Vision struct {
	client client.VisionClient
	config VisionConfig
}

// NewVision creates a vision locator
func NewVision(c client.VisionClient, config VisionConfig) *Vision {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.MaxSide <= 0 {
		config.MaxSide = 768
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = 0.3
	}
	return &Vision{client: c, config: config}
}

// Locate implements Locator
func (v *Vision) Locate(ctx context.Context, img image.Image) (Point, error) {
	if img == nil || img.Bounds().Empty() {
		return Point{}, ErrNoSubject
	}
	preview := imaging.Fit(img, v.config.MaxSide, v.config.MaxSide, imaging.Lanczos)
	data, err := raster.EncodeBytes(preview, raster.JPEG, raster.EncodeOptions{Quality: 85})
	if err != nil {
		return Point{}, fmt.Errorf("failed to encode preview: %w", err)
	}

	res, err := v.client.LocateSubject(ctx, v.config.Model, v.config.Prompt, data)
	if err != nil {
		return Point{}, err
	}
	res = validateResult(res)
	if res.Primary.Confidence < v.config.MinConfidence {
		return Point{}, fmt.Errorf("%w: %q at %.2f", ErrLowConfidence, res.Primary.Label, res.Primary.Confidence)
	}
	return Point{X: res.Primary.Cx, Y: res.Primary.Cy}.Clamp(), nil
}

// validateResult normalizes the box and demotes answers that look like a
// fallback or a refusal.
func validateResult(res *types.FocusResult) *types.FocusResult {
	out := *res
	out.Primary.Box = normalizeBox(out.Primary.Box)

	label := strings.ToLower(out.Primary.Label)
	if label == "none" {
		out.Primary.Confidence = 0
		return &out
	}
	for _, indicator := range []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"} {
		if strings.Contains(label, indicator) || strings.Contains(strings.ToLower(out.Description), indicator) {
			out.Primary.Label = "none"
			out.Primary.Confidence = 0
			return &out
		}
	}

	// a center outside the box is a hallucinated coordinate; trust the box
	b := out.Primary.Box
	if b.W > 0 && b.H > 0 && (out.Primary.Cx < b.X || out.Primary.Cx > b.X+b.W || out.Primary.Cy < b.Y || out.Primary.Cy > b.Y+b.H) {
		out.Primary.Cx, out.Primary.Cy = b.Center()
	}
	return &out
}

// normalizeBox clamps a box to the unit square
func normalizeBox(b types.Box) types.Box {
	x := raster.Clamp(b.X, 0, 1)
	y := raster.Clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: raster.Clamp(b.W, 0, 1-x),
		H: raster.Clamp(b.H, 0, 1-y),
	}
}
