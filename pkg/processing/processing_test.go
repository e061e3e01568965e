package processing

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/photocard/pkg/types"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0644); err != nil {
		t.Fatal(err)
	}

	data, err := NewLoader(nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(data) != 3 {
		t.Errorf("Expected 3 bytes, got %d", len(data))
	}

	if _, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			if r.Header.Get("User-Agent") == "" {
				t.Error("Expected a User-Agent header")
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png bytes"))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(srv.Client())
	data, err := l.Load(context.Background(), srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != "png bytes" {
		t.Errorf("Unexpected body %q", data)
	}

	for _, path := range []string{"/page", "/missing"} {
		if _, err := l.Load(context.Background(), srv.URL+path); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
	if _, err := l.LoadURL(context.Background(), "ftp://example.com/a.jpg"); err == nil {
		t.Error("Expected error for an unsupported scheme")
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/a.jpg") || IsURL("/tmp/a.jpg") || IsURL("httpfile.jpg") {
		t.Error("IsURL gave the wrong answer")
	}
}

func TestOverlay(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	out := Overlay(src, types.CropRegion{X: 50, Y: 0, Width: 75, Height: 100}, 0.5, 0.25)

	if out == src {
		t.Fatal("Expected a copy")
	}
	if got := src.NRGBAAt(10, 50); got != (color.NRGBA{200, 200, 200, 200}) {
		t.Errorf("Expected the source untouched, got %v", got)
	}
	if got := out.NRGBAAt(10, 50); got.R >= 200 {
		t.Errorf("Expected the outside to be shaded, got %v", got)
	}
	if got := out.NRGBAAt(80, 60); got.R != 200 || got.G != 200 {
		t.Errorf("Expected the inside untouched, got %v", got)
	}
	if got := out.NRGBAAt(50, 60); got != frameColor {
		t.Errorf("Expected the frame outline, got %v", got)
	}
	if got := out.NRGBAAt(100, 25); got != focusColor {
		t.Errorf("Expected the focus mark, got %v", got)
	}
}
