package types

import (
	"image"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center of the box in normalized coordinates
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Subject represents the primary subject located in a photo
type Subject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// FocusResult contains the answer of a vision model asked to locate the subject
type FocusResult struct {
	Primary     Subject `json:"primary"`
	Description string  `json:"description"`
}

// CropRegion is a source-pixel rectangle selected for rasterization, together
// with the zoom factor the user had applied when it was computed.
type CropRegion struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Zoom   float64 `json:"zoom"`
}

// Rect returns the region as an image.Rectangle
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within reports whether the region lies fully inside a w x h image
func (r CropRegion) Within(w, h int) bool {
	return r.Width > 0 && r.Height > 0 && r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= w && r.Y+r.Height <= h
}

// NormalizationResult is the immutable output of photo normalization
type NormalizationResult struct {
	Image       image.Image `json:"-"`
	Data        []byte      `json:"-"`
	Format      string      `json:"format"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	TooSmall    bool        `json:"too_small"`
	Orientation int         `json:"orientation"`
}

// Blob is a self-contained encoded image
type Blob struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Empty reports whether the blob carries no image data
func (b *Blob) Empty() bool {
	return b == nil || len(b.Data) == 0
}

// SourceRef is an opaque handle to the photo the user uploaded
type SourceRef struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}
