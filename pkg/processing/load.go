// Package processing loads photo inputs for the command line tools and draws
// debug overlays of crop decisions.
package processing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// MaxDownload bounds the size of a photo fetched over HTTP
const MaxDownload = 50 << 20

const userAgent = "photocard/1.0"

// Loader reads photo bytes from files or http(s) URLs. The bytes are
// returned undecoded so EXIF metadata survives until normalization.
type Loader struct {
	client *http.Client
}

// NewLoader creates a loader. A nil client gets a 30 second timeout.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{client: client}
}

// IsURL reports whether source names an http(s) resource
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads source as a URL when it looks like one, otherwise as a file
func (l *Loader) Load(ctx context.Context, source string) ([]byte, error) {
	if IsURL(source) {
		return l.LoadURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return data, nil
}

// LoadURL downloads a photo
func (l *Loader) LoadURL(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download photo: HTTP %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) > MaxDownload {
		return nil, fmt.Errorf("photo exceeds %d bytes", MaxDownload)
	}
	return data, nil
}
