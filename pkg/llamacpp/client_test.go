package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completion(content any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"model":   "minicpm",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	}
}

func TestLocateSubject(t *testing.T) {
	var got ChatCompletionRequest
	var imageURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var raw struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Content []ContentPart `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.Model, got.Temperature = raw.Model, raw.Temperature
		for _, p := range raw.Messages[0].Content {
			if p.ImageURL != nil {
				imageURL = p.ImageURL.URL
			}
		}
		json.NewEncoder(w).Encode(completion("```json\n" +
			`{"primary":{"label":"person","confidence":0.85,"box":{"x":0.2,"y":0.1,"w":0.4,"h":0.5},"cx":0.4,"cy":0.3},"description":"a person"}` +
			"\n```"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/ignored/path", srv.Client())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	res, err := c.LocateSubject(context.Background(), "minicpm", "where?", []byte{0xff, 0xd8, 0xff, 0xe0})
	if err != nil {
		t.Fatalf("LocateSubject failed: %v", err)
	}
	if res.Primary.Label != "person" || res.Primary.Cx != 0.4 || res.Primary.Cy != 0.3 {
		t.Errorf("Unexpected result %+v", res.Primary)
	}
	if got.Model != "minicpm" || got.Temperature != 0.2 {
		t.Errorf("Unexpected request %+v", got)
	}
	if !strings.HasPrefix(imageURL, "data:image/jpeg;base64,") {
		t.Errorf("Expected a JPEG data URL, got %q", imageURL)
	}
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completion([]any{map[string]any{"type": "text", "text": "a red barn"}}))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, srv.Client())
	text, err := c.SimpleQuery(context.Background(), "m", "describe", nil)
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if text != "a red barn" {
		t.Errorf("Expected text from content parts, got %q", text)
	}
}

func TestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, srv.Client())
	if _, err := c.LocateSubject(context.Background(), "m", "p", nil); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected a status error, got %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completion(""))
	}))
	defer empty.Close()
	c, _ = NewClient(empty.URL, empty.Client())
	if _, err := c.LocateSubject(context.Background(), "m", "p", nil); err == nil {
		t.Error("Expected an error for an empty answer")
	}

	if _, err := NewClient("localhost:8080", nil); err == nil {
		t.Error("Expected an error for a URL without scheme")
	}
}
