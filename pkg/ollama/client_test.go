package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost", "://bad"} {
		if _, err := NewClient(u, nil); err == nil {
			t.Errorf("Expected error for %q", u)
		}
	}
}

func TestLocateSubject(t *testing.T) {
	var gotModel string
	var gotImages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Images []string `json:"images"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = req.Model
		if len(req.Messages) > 0 {
			gotImages = len(req.Messages[0].Images)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"message": map[string]string{
				"role":    "assistant",
				"content": `{"primary":{"label":"dog","confidence":0.8,"box":{"x":0.6,"y":0.1,"w":0.3,"h":0.3},"cx":0.75,"cy":0.25},"description":"a dog"}`,
			},
			"done": true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", srv.Client())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	res, err := c.LocateSubject(context.Background(), "llava", "where?", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("LocateSubject failed: %v", err)
	}
	if gotModel != "llava" || gotImages != 1 {
		t.Errorf("Expected one image sent to llava, got model %q images %d", gotModel, gotImages)
	}
	if res.Primary.Label != "dog" || res.Primary.Cx != 0.75 {
		t.Errorf("Unexpected result %+v", res.Primary)
	}
}
