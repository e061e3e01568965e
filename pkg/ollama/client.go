package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/photocard/pkg/client"
	"github.com/menta2k/photocard/pkg/types"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 120 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
}

var _ client.VisionClient = (*Client)(nil)

// NewClient creates a new Ollama client for the server at ollamaURL. Any
// path in the URL is ignored.
func NewClient(ollamaURL string, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{client: api.NewClient(baseURL, httpClient), timeout: DefaultTimeout}, nil
}

// SetTimeout changes the deadline applied to calls without one
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SimpleQuery sends a prompt with an image and returns the raw answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt string, img []byte) (string, error) {
	return c.chat(ctx, model, prompt, img, nil)
}

// LocateSubject asks the model for the dominant subject of the photo. An
// answer that is not usable JSON yields a low-confidence centered result
// rather than an error.
func (c *Client) LocateSubject(ctx context.Context, model, prompt string, img []byte) (*types.FocusResult, error) {
	content, err := c.chat(ctx, model, prompt, img, map[string]any{"temperature": 0.2})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return client.ParseFocusResult(content), nil
}

func (c *Client) chat(ctx context.Context, model, prompt string, img []byte, options map[string]any) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(img)},
			},
		},
		Stream:  &streamFalse,
		Options: options,
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return sb.String(), nil
}
