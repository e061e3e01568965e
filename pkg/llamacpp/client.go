// Package llamacpp talks to a llama.cpp server through its OpenAI compatible
// chat completions endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/photocard/pkg/client"
	"github.com/menta2k/photocard/pkg/types"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 300 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

var _ client.VisionClient = (*Client)(nil)

// Message is an OpenAI compatible chat message
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ChatCompletionRequest is an OpenAI compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// ChatCompletionResponse is an OpenAI compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// NewClient creates a client for the server at serverURL. Any path in the
// URL is ignored.
func NewClient(serverURL string, httpClient *http.Client) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", serverURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    u.Scheme + "://" + u.Host,
		httpClient: httpClient,
		timeout:    DefaultTimeout,
	}, nil
}

// SetTimeout changes the deadline applied to calls without one
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SimpleQuery sends a prompt with an image and returns the raw answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt string, img []byte) (string, error) {
	return c.chat(ctx, ChatCompletionRequest{
		Model:       model,
		Messages:    userMessage(prompt, img),
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        0.9,
	})
}

// LocateSubject asks the model for the dominant subject of the photo. An
// answer that is not usable JSON yields a low-confidence centered result
// rather than an error.
func (c *Client) LocateSubject(ctx context.Context, model, prompt string, img []byte) (*types.FocusResult, error) {
	text, err := c.chat(ctx, ChatCompletionRequest{
		Model:       model,
		Messages:    userMessage(prompt, img),
		Temperature: 0.2,
		MaxTokens:   1024,
		TopP:        0.8,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response from llama.cpp server")
	}
	return client.ParseFocusResult(text), nil
}

func userMessage(prompt string, img []byte) []Message {
	content := []ContentPart{{Type: "text", Text: prompt}}
	if len(img) > 0 {
		content = append(content, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img),
			},
		})
	}
	return []Message{{Role: "user", Content: content}}
}

func (c *Client) chat(ctx context.Context, req ChatCompletionRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// content is either a string or a list of parts
	switch content := resp.Choices[0].Message.Content.(type) {
	case string:
		return content, nil
	case []any:
		for _, item := range content {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text, nil
				}
			}
		}
	}
	return "", nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
