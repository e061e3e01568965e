package normalizer

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/menta2k/photocard/internal/testimg"
	"github.com/menta2k/photocard/pkg/orientation"
	"github.com/menta2k/photocard/pkg/raster"
)

func TestNew(t *testing.T) {
	n := New(nil)
	if n == nil {
		t.Fatal("New() returned nil")
	}

	cfg := n.Config()
	if cfg.MaxDimension != 2000 {
		t.Errorf("Expected max dimension 2000, got %d", cfg.MaxDimension)
	}
	if cfg.MinDimension != 300 {
		t.Errorf("Expected min dimension 300, got %d", cfg.MinDimension)
	}
	if cfg.Quality != 92 {
		t.Errorf("Expected quality 92, got %d", cfg.Quality)
	}
	if cfg.Format != raster.JPEG {
		t.Errorf("Expected jpeg output, got %s", cfg.Format)
	}
}

func TestPlanForLargeRotatedPhoto(t *testing.T) {
	n := New(nil)

	plan := n.PlanFor(4000, 3000, orientation.Rotate90)
	if plan.Rotation != 90 {
		t.Errorf("Expected rotation 90, got %d", plan.Rotation)
	}
	if plan.Scale != 0.5 {
		t.Errorf("Expected scale 0.5, got %f", plan.Scale)
	}
	if plan.TargetWidth != 1500 || plan.TargetHeight != 2000 {
		t.Errorf("Expected 1500x2000, got %dx%d", plan.TargetWidth, plan.TargetHeight)
	}
}

func TestPlanForNeverUpscales(t *testing.T) {
	n := New(nil)

	for _, sz := range [][2]int{{2000, 1000}, {640, 480}, {1, 1}, {2000, 2000}} {
		plan := n.PlanFor(sz[0], sz[1], orientation.Normal)
		if plan.Scale != 1 {
			t.Errorf("Expected scale exactly 1 for %v, got %f", sz, plan.Scale)
		}
		if plan.TargetWidth != sz[0] || plan.TargetHeight != sz[1] {
			t.Errorf("Expected unchanged size for %v, got %dx%d", sz, plan.TargetWidth, plan.TargetHeight)
		}
	}
}

func TestPlanForAxisSwap(t *testing.T) {
	n := New(nil)

	cases := []struct {
		o    orientation.Orientation
		w, h int
	}{
		{orientation.Normal, 300, 200},
		{orientation.Rotate180, 300, 200},
		{orientation.Rotate90, 200, 300},
		{orientation.Rotate270, 200, 300},
	}
	for _, c := range cases {
		plan := n.PlanFor(300, 200, c.o)
		if plan.TargetWidth != c.w || plan.TargetHeight != c.h {
			t.Errorf("orientation %d: expected %dx%d, got %dx%d", c.o, c.w, c.h, plan.TargetWidth, plan.TargetHeight)
		}
	}
}

func TestNormalizeOrientation(t *testing.T) {
	n := New(nil)
	src := testimg.Marked(60, 40)

	cases := []struct {
		tag         uint16
		w, h        int
		brightX     int
		brightY     int
		description string
	}{
		{1, 60, 40, 10, 10, "unrotated keeps the mark top-left"},
		{3, 60, 40, 50, 30, "180 moves the mark bottom-right"},
		{6, 40, 60, 30, 10, "90 clockwise moves the mark top-right"},
		{8, 40, 60, 10, 50, "90 counter-clockwise moves the mark bottom-left"},
	}

	for _, c := range cases {
		res, err := n.Normalize(context.Background(), testimg.JPEGWithOrientation(src, c.tag))
		if err != nil {
			t.Fatalf("tag %d: Normalize failed: %v", c.tag, err)
		}
		if res.Width != c.w || res.Height != c.h {
			t.Errorf("tag %d: expected %dx%d, got %dx%d", c.tag, c.w, c.h, res.Width, res.Height)
		}
		if res.Orientation != int(c.tag) {
			t.Errorf("tag %d: expected orientation to be reported, got %d", c.tag, res.Orientation)
		}
		r, _, _, _ := res.Image.At(c.brightX, c.brightY).RGBA()
		if r>>8 < 180 {
			t.Errorf("tag %d: %s, pixel (%d,%d) is dark", c.tag, c.description, c.brightX, c.brightY)
		}
	}
}

func TestNormalizeDownscales(t *testing.T) {
	n := NewWithConfig(Config{MaxDimension: 50, MinDimension: 10}, nil)

	res, err := n.Normalize(context.Background(), testimg.PNG(testimg.Gradient(200, 100)))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.Width != 50 || res.Height != 25 {
		t.Errorf("Expected 50x25, got %dx%d", res.Width, res.Height)
	}

	img, format, err := raster.Decode(res.Data)
	if err != nil {
		t.Fatalf("Expected re-encoded data to decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg output, got %s", format)
	}
	if img.Bounds() != image.Rect(0, 0, 50, 25) {
		t.Errorf("Expected encoded bounds 50x25, got %v", img.Bounds())
	}
}

func TestNormalizeTooSmallBoundary(t *testing.T) {
	n := New(nil)

	res, err := n.Normalize(context.Background(), testimg.PNG(testimg.Gradient(299, 400)))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !res.TooSmall {
		t.Error("Expected a 299px short side to be too small")
	}

	res, err = n.Normalize(context.Background(), testimg.PNG(testimg.Gradient(300, 400)))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.TooSmall {
		t.Error("Expected a 300px short side to be accepted")
	}
}

func TestNormalizeDecodeFailure(t *testing.T) {
	n := New(nil)

	_, err := n.Normalize(context.Background(), []byte("definitely not a photo"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestNormalizeOrientationFailureIsSilent(t *testing.T) {
	n := New(nil)
	n.SetOrientationParser(orientation.ParserFunc(func([]byte) (orientation.Orientation, bool) {
		return 0, false
	}))

	res, err := n.Normalize(context.Background(), testimg.PNG(testimg.Gradient(40, 30)))
	if err != nil {
		t.Fatalf("Expected orientation failure to be ignored, got %v", err)
	}
	if res.Width != 40 || res.Height != 30 || res.Orientation != 1 {
		t.Errorf("Expected unrotated 40x30, got %dx%d orientation %d", res.Width, res.Height, res.Orientation)
	}
}

func TestNormalizeCanceledContext(t *testing.T) {
	n := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := n.Normalize(ctx, testimg.PNG(testimg.Gradient(10, 10))); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	n := NewWithConfig(Config{MaxDimension: 64}, nil)
	inputs := [][]byte{
		testimg.PNG(testimg.Gradient(128, 96)),
		testimg.JPEGWithOrientation(testimg.Gradient(96, 128), 6),
		testimg.PNG(testimg.Marked(80, 80)),
	}
	want := [][2]int{{64, 48}, {64, 48}, {64, 64}}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		for j := range inputs {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				res, err := n.Normalize(context.Background(), inputs[j])
				if err != nil {
					errs <- err
					return
				}
				if res.Width != want[j][0] || res.Height != want[j][1] {
					errs <- errors.New("unexpected size from concurrent normalize")
				}
			}(j)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
