package cropper

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/menta2k/photocard/internal/testimg"
	"github.com/menta2k/photocard/pkg/types"
)

func TestNew(t *testing.T) {
	e := New(nil)
	if e == nil {
		t.Fatal("New() returned nil")
	}

	cfg := e.Config()
	if cfg.Aspect != Portrait {
		t.Errorf("Expected portrait aspect, got %+v", cfg.Aspect)
	}
	if cfg.MinZoom != 1 || cfg.MaxZoom != 4 {
		t.Errorf("Expected zoom range 1..4, got %f..%f", cfg.MinZoom, cfg.MaxZoom)
	}
}

func TestNewWithConfigFillsDefaults(t *testing.T) {
	e := NewWithConfig(CropConfig{MinZoom: 2, MaxZoom: 1}, nil)

	cfg := e.Config()
	if cfg.Aspect != Portrait {
		t.Errorf("Expected default aspect, got %+v", cfg.Aspect)
	}
	if cfg.MinZoom != 2 {
		t.Errorf("Expected min zoom 2, got %f", cfg.MinZoom)
	}
	if cfg.MaxZoom < cfg.MinZoom {
		t.Errorf("Expected max zoom >= min zoom, got %f", cfg.MaxZoom)
	}
}

func TestAspectRatioValue(t *testing.T) {
	if v := Portrait.Value(); v != 0.75 {
		t.Errorf("Expected 0.75, got %f", v)
	}
	if v := Square.Value(); v != 1 {
		t.Errorf("Expected 1, got %f", v)
	}
}

func TestRasterizeExactDimensions(t *testing.T) {
	e := New(nil)
	src := testimg.Gradient(101, 77)

	regions := []types.CropRegion{
		{X: 3, Y: 4, Width: 21, Height: 28},
		{X: 0, Y: 0, Width: 101, Height: 77},
		{X: 100, Y: 76, Width: 1, Height: 1},
		{X: 40, Y: 10, Width: 45, Height: 60},
	}

	for _, r := range regions {
		out, err := e.Rasterize(src, r, 0)
		if err != nil {
			t.Fatalf("Rasterize(%+v) failed: %v", r, err)
		}
		if out.Bounds() != image.Rect(0, 0, r.Width, r.Height) {
			t.Errorf("Expected %dx%d, got %v", r.Width, r.Height, out.Bounds())
		}
	}
}

func TestRasterizeCopiesPixelsExactly(t *testing.T) {
	e := New(nil)
	src := testimg.Gradient(101, 77)
	r := types.CropRegion{X: 17, Y: 9, Width: 30, Height: 40}

	out, err := e.Rasterize(src, r, 0)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	for _, p := range []image.Point{{0, 0}, {29, 39}, {15, 20}, {29, 0}} {
		got := out.NRGBAAt(p.X, p.Y)
		want := src.NRGBAAt(r.X+p.X, r.Y+p.Y)
		if got != want {
			t.Errorf("pixel %v: expected %v, got %v", p, want, got)
		}
	}
}

func TestRasterizeRotated(t *testing.T) {
	e := New(nil)
	src := testimg.Marked(40, 20)

	out, err := e.Rasterize(src, types.CropRegion{Width: 40, Height: 20}, 180)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Fatalf("Expected 40x20, got %v", out.Bounds())
	}
	if c := out.NRGBAAt(32, 15); c.R < 180 {
		t.Errorf("Expected mark to move bottom-right, got %v", c)
	}
	if c := out.NRGBAAt(8, 5); c.R > 80 {
		t.Errorf("Expected top-left to be dark after rotation, got %v", c)
	}
}

func TestRasterizeRotatedBounds(t *testing.T) {
	e := New(nil)
	src := testimg.Gradient(40, 20)

	// a quarter turn covers x 10..30 and y -10..30
	out, err := e.Rasterize(src, types.CropRegion{X: 10, Y: -10, Width: 20, Height: 40}, 90)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 20, 40) {
		t.Errorf("Expected 20x40, got %v", out.Bounds())
	}

	bad := []types.CropRegion{
		{X: 0, Y: 0, Width: 40, Height: 20},
		{X: 10, Y: -11, Width: 20, Height: 40},
		{X: 100, Y: 100, Width: 10, Height: 10},
	}
	for _, r := range bad {
		if _, err := e.Rasterize(src, r, 90); !errors.Is(err, ErrInvalidRegion) {
			t.Errorf("Rasterize(%+v, 90): expected ErrInvalidRegion, got %v", r, err)
		}
	}
}

func TestRasterizeRejectsInvalidRegion(t *testing.T) {
	e := New(nil)
	src := testimg.Gradient(50, 50)

	bad := []types.CropRegion{
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 45, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 41, Width: 10, Height: 10},
	}
	for _, r := range bad {
		if _, err := e.Rasterize(src, r, 0); !errors.Is(err, ErrInvalidRegion) {
			t.Errorf("Rasterize(%+v): expected ErrInvalidRegion, got %v", r, err)
		}
	}

	if _, err := e.Rasterize(nil, types.CropRegion{Width: 1, Height: 1}, 0); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestCropEncodesLosslessly(t *testing.T) {
	e := New(nil)
	src := testimg.Gradient(64, 64)
	r := types.CropRegion{X: 8, Y: 8, Width: 24, Height: 32, Zoom: 1.5}

	res, err := e.Crop(src, r, 0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if res.Region != r {
		t.Errorf("Expected region %+v to be reported, got %+v", r, res.Region)
	}

	decoded, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("Expected PNG output: %v", err)
	}
	if decoded.Bounds().Dx() != 24 || decoded.Bounds().Dy() != 32 {
		t.Errorf("Expected 24x32, got %v", decoded.Bounds())
	}
	r0, g0, b0, _ := decoded.At(5, 7).RGBA()
	want := src.NRGBAAt(13, 15)
	if uint8(r0>>8) != want.R || uint8(g0>>8) != want.G || uint8(b0>>8) != want.B {
		t.Errorf("Expected lossless pixel %v, got %d,%d,%d", want, r0>>8, g0>>8, b0>>8)
	}
}

func TestFitRegion(t *testing.T) {
	e := New(nil)

	cases := []struct {
		w, h int
		want types.CropRegion
	}{
		{300, 400, types.CropRegion{X: 0, Y: 0, Width: 300, Height: 400, Zoom: 1}},
		{800, 600, types.CropRegion{X: 175, Y: 0, Width: 450, Height: 600, Zoom: 1}},
		{300, 1000, types.CropRegion{X: 0, Y: 300, Width: 300, Height: 400, Zoom: 1}},
	}
	for _, c := range cases {
		if got := e.FitRegion(c.w, c.h); got != c.want {
			t.Errorf("FitRegion(%d, %d) = %+v, want %+v", c.w, c.h, got, c.want)
		}
	}
}

func TestSessionInitialFrame(t *testing.T) {
	s, err := New(nil).NewSession(testimg.Gradient(800, 600))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if _, ok := s.Region(); ok {
		t.Error("Expected no region before the first interaction completes")
	}

	r := s.Complete()
	want := types.CropRegion{X: 175, Y: 0, Width: 450, Height: 600, Zoom: 1}
	if r != want {
		t.Errorf("Expected %+v, got %+v", want, r)
	}
}

func TestSessionZoomClamped(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(300, 400))

	s.SetZoom(10)
	if s.Zoom() != 4 {
		t.Errorf("Expected zoom clamped to 4, got %f", s.Zoom())
	}
	s.SetZoom(0.2)
	if s.Zoom() != 1 {
		t.Errorf("Expected zoom clamped to 1, got %f", s.Zoom())
	}

	s.SetZoom(2)
	r := s.Complete()
	if r.Width != 150 || r.Height != 200 {
		t.Errorf("Expected 150x200 at zoom 2, got %dx%d", r.Width, r.Height)
	}
	if r.Zoom != 2 {
		t.Errorf("Expected zoom 2 recorded, got %f", r.Zoom)
	}
}

func TestSessionPanStaysInsideImage(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(800, 600))
	s.SetZoom(2)

	moves := [][2]float64{{10000, 10000}, {-10000, 0}, {0, -10000}, {37.5, 12.25}, {-5000, 5000}}
	for _, m := range moves {
		s.Pan(m[0], m[1])
		r := s.Complete()
		if !r.Within(800, 600) {
			t.Errorf("after pan %v: region %+v leaves the image", m, r)
		}
		if ratio := float64(r.Width) / float64(r.Height); math.Abs(ratio-0.75) > 0.01 {
			t.Errorf("after pan %v: aspect %f is not 3:4", m, ratio)
		}
	}
}

func TestSessionZoomOutReclampsCenter(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(800, 600))
	s.SetZoom(4)
	s.SetCenter(800, 600)
	s.SetZoom(1)

	r := s.Complete()
	if !r.Within(800, 600) {
		t.Errorf("Expected region inside image after zooming out, got %+v", r)
	}
	if r.Height != 600 {
		t.Errorf("Expected full height at zoom 1, got %d", r.Height)
	}
}

func TestSessionCenterOn(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(800, 600))
	s.SetZoom(2)
	s.CenterOn(0, 0)

	r := s.Complete()
	if r.X != 0 || r.Y != 0 {
		t.Errorf("Expected frame pinned to the top-left corner, got %+v", r)
	}
}

func TestSessionSaveWithoutRegionIsNoop(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(100, 100))

	res, ok, err := s.Save()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("Expected Save to report nothing saved")
	}
	if res.Data != nil {
		t.Error("Expected no output data")
	}
}

func TestSessionSave(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(300, 400))
	s.SetZoom(2)
	s.Pan(-20, 30)
	r := s.Complete()

	res, ok, err := s.Save()
	if err != nil || !ok {
		t.Fatalf("Expected save to succeed, got ok=%v err=%v", ok, err)
	}
	if res.Image.Bounds().Dx() != r.Width || res.Image.Bounds().Dy() != r.Height {
		t.Errorf("Expected %dx%d output, got %v", r.Width, r.Height, res.Image.Bounds())
	}
}

func TestSessionCancel(t *testing.T) {
	s, _ := New(nil).NewSession(testimg.Gradient(300, 400))
	s.SetZoom(3)
	s.Pan(50, 50)
	s.Complete()

	s.Cancel()
	if _, ok := s.Region(); ok {
		t.Error("Expected region to be discarded")
	}
	if s.Zoom() != 1 {
		t.Errorf("Expected zoom reset to 1, got %f", s.Zoom())
	}
	if x, y := s.Center(); x != 150 || y != 200 {
		t.Errorf("Expected center reset to (150,200), got (%f,%f)", x, y)
	}
}

func TestNewSessionRejectsEmptyImage(t *testing.T) {
	if _, err := New(nil).NewSession(image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}
