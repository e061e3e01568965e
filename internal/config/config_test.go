package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if c.Normalizer.MaxDimension != 2000 || c.Normalizer.MinDimension != 300 || c.Normalizer.Quality != 92 {
		t.Errorf("Unexpected normalizer defaults %+v", c.Normalizer)
	}
	if c.Cropper.MinZoom != 1 || c.Cropper.MaxZoom != 4 {
		t.Errorf("Unexpected zoom defaults %+v", c.Cropper)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"min above max":      func(c *Config) { c.Normalizer.MinDimension = 3000 },
		"quality":            func(c *Config) { c.Normalizer.Quality = 0 },
		"normalizer format":  func(c *Config) { c.Normalizer.Format = "gif" },
		"zoom below one":     func(c *Config) { c.Cropper.MinZoom = 0.5 },
		"zoom range":         func(c *Config) { c.Cropper.MaxZoom = 0.9 },
		"background":         func(c *Config) { c.Render.Background = "white" },
		"scale":              func(c *Config) { c.Render.Scale = 0 },
		"addr":               func(c *Config) { c.Server.Addr = "" },
		"focus url":          func(c *Config) { c.Focus.URL = "not a url" },
		"model without name": func(c *Config) { c.Focus.URL = "http://localhost:11434" },
		"focus backend":      func(c *Config) { c.Focus.Backend = "openai" },
		"log level":          func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		c := Default()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateMessageNamesField(t *testing.T) {
	c := Default()
	c.Normalizer.Quality = 101

	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "normalizer.quality") {
		t.Errorf("Expected error naming normalizer.quality, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	c := Default()
	c.Render.Template = "card.png"
	c.Focus.Saliency = false
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Render.Template != "card.png" || loaded.Focus.Saliency {
		t.Errorf("Expected saved values, got %+v", loaded)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"addr": ":9000"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("Expected addr :9000, got %s", c.Server.Addr)
	}
	if c.Normalizer.MaxDimension != 2000 || c.Server.MaxUploadMB != 20 {
		t.Errorf("Expected defaults to survive, got %+v", c)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PHOTOCARD_ADDR":          ":7000",
		"PHOTOCARD_FOCUS_BACKEND": "llamacpp",
		"PHOTOCARD_FOCUS_URL":     "http://llama:8080",
		"PHOTOCARD_FOCUS_MODEL":   "minicpm-v",
		"PHOTOCARD_MAX_DIMENSION": "1600",
	}
	c := Default()
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if c.Server.Addr != ":7000" || c.Focus.Backend != "llamacpp" || c.Focus.URL != "http://llama:8080" || c.Focus.Model != "minicpm-v" {
		t.Errorf("Expected string overrides, got %+v %+v", c.Server, c.Focus)
	}
	if c.Normalizer.MaxDimension != 1600 {
		t.Errorf("Expected max dimension 1600, got %d", c.Normalizer.MaxDimension)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Expected overridden config to validate: %v", err)
	}

	bad := map[string]string{"PHOTOCARD_MAX_UPLOAD_MB": "lots"}
	if err := Default().ApplyEnv(func(k string) string { return bad[k] }); err == nil {
		t.Error("Expected error for a non-numeric override")
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("PHOTOCARD_TEMPLATE=/srv/card.png\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PHOTOCARD_TEMPLATE") })

	c, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Render.Template != "/srv/card.png" {
		t.Errorf("Expected template from .env, got %q", c.Render.Template)
	}

	if _, err := Load("", filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("Expected a missing .env to be ignored, got %v", err)
	}
}
