package processing

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photocard/pkg/types"
)

var (
	frameColor  = color.NRGBA{255, 204, 0, 255}
	focusColor  = color.NRGBA{255, 0, 0, 255}
	centerColor = color.NRGBA{0, 170, 255, 255}
	shadeColor  = color.NRGBA{0, 0, 0, 110}
)

// Overlay draws a crop decision on a copy of img: the area outside the
// region is shaded, the region is outlined and the focus point (normalized
// to [0,1]) is marked with a cross.
func Overlay(img image.Image, region types.CropRegion, fx, fy float64) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return out
	}

	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	r := region.Rect().Intersect(b)
	if !r.Empty() {
		shade := image.NewUniform(shadeColor)
		for _, s := range []image.Rectangle{
			image.Rect(0, 0, w, r.Min.Y),
			image.Rect(0, r.Max.Y, w, h),
			image.Rect(0, r.Min.Y, r.Min.X, r.Max.Y),
			image.Rect(r.Max.X, r.Min.Y, w, r.Max.Y),
		} {
			draw.Draw(out, s, shade, image.Point{}, draw.Over)
		}
		outline(out, r, stroke, frameColor)
	}

	px := int(math.Round(fx * float64(w)))
	py := int(math.Round(fy * float64(h)))
	mark(out, px, py, cross, stroke, focusColor)
	mark(out, w/2, h/2, 6, 1, centerColor)

	return out
}

func outline(img *image.NRGBA, r image.Rectangle, stroke int, c color.NRGBA) {
	u := image.NewUniform(c)
	for _, s := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
		image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y),
		image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(img, s.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

func mark(img *image.NRGBA, x, y, size, stroke int, c color.NRGBA) {
	u := image.NewUniform(c)
	half := stroke / 2
	for _, s := range []image.Rectangle{
		image.Rect(x-size, y-half, x+size+1, y-half+stroke),
		image.Rect(x-half, y-size, x-half+stroke, y+size+1),
	} {
		draw.Draw(img, s.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}
