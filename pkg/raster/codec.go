package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Format is an output encoding
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

var (
	ErrUnsupportedFormat = errors.New("raster: unsupported format")
	ErrUnknownImage      = errors.New("image: unknown or unsupported format")
)

// ParseFormat maps a user supplied extension or name to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// MimeType returns the media type of the format
func (f Format) MimeType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// Ext returns the conventional file extension without the dot
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// EncodeOptions controls lossy quality and webp lossless mode
type EncodeOptions struct {
	Quality  int
	Lossless bool
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, f Format, opts EncodeOptions) error {
	switch f {
	case JPEG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = 92
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// EncodeBytes encodes img into a new byte slice
func EncodeBytes(img image.Image, f Format, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes image bytes with every registered decoder, falling back to
// the libwebp decoder for webp variants the pure Go decoder rejects.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, "webp", nil
	}
	return nil, "", fmt.Errorf("%w: %v", ErrUnknownImage, err)
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
