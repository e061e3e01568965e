package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PHOTOCARD_"

// Config holds the application configuration
type Config struct {
	Normalizer NormalizerConfig `json:"normalizer"`
	Cropper    CropperConfig    `json:"cropper"`
	Render     RenderConfig     `json:"render"`
	Focus      FocusConfig      `json:"focus"`
	Server     ServerConfig     `json:"server"`
	Log        LogConfig        `json:"log"`
}

// NormalizerConfig holds configuration for upload normalization
type NormalizerConfig struct {
	MaxDimension int    `json:"max_dimension" validate:"min=1,max=16384"`
	MinDimension int    `json:"min_dimension" validate:"min=0"`
	Quality      int    `json:"quality" validate:"min=1,max=100"`
	Format       string `json:"format" validate:"oneof=jpeg webp"`
}

// CropperConfig holds configuration for photo cropping
type CropperConfig struct {
	MinZoom float64 `json:"min_zoom" validate:"gte=1"`
	MaxZoom float64 `json:"max_zoom" validate:"gtefield=MinZoom"`
	Format  string  `json:"format" validate:"oneof=png webp"`
}

// RenderConfig holds configuration for card rendering
type RenderConfig struct {
	Width      int     `json:"width" validate:"min=1"`
	Height     int     `json:"height" validate:"min=1"`
	Scale      float64 `json:"scale" validate:"gt=0,lte=8"`
	Background string  `json:"background" validate:"hexcolor"`
	Template   string  `json:"template"`
	Format     string  `json:"format" validate:"oneof=jpeg png webp"`
}

// FocusConfig holds configuration for initial crop placement
type FocusConfig struct {
	Saliency bool `json:"saliency"`
	// Backend selects the vision model server used when URL is set
	Backend        string  `json:"backend" validate:"oneof=ollama llamacpp"`
	URL            string  `json:"url" validate:"omitempty,url"`
	Model          string  `json:"model" validate:"required_with=URL"`
	MinConfidence  float64 `json:"min_confidence" validate:"min=0,max=1"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"min=0"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Addr        string `json:"addr" validate:"required"`
	Mode        string `json:"mode" validate:"oneof=debug release test"`
	MaxUploadMB int    `json:"max_upload_mb" validate:"min=1,max=200"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level    string `json:"level" validate:"oneof=trace debug info warn warning error"`
	File     string `json:"file"`
	NoColors bool   `json:"no_colors"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Normalizer: NormalizerConfig{
			MaxDimension: 2000,
			MinDimension: 300,
			Quality:      92,
			Format:       "jpeg",
		},
		Cropper: CropperConfig{
			MinZoom: 1,
			MaxZoom: 4,
			Format:  "png",
		},
		Render: RenderConfig{
			Width:      600,
			Height:     800,
			Scale:      2,
			Background: "#ffffff",
			Format:     "jpeg",
		},
		Focus: FocusConfig{
			Saliency:       true,
			Backend:        "ollama",
			MinConfidence:  0.3,
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			Mode:        "release",
			MaxUploadMB: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads an optional JSON file, then an optional .env file, and applies
// environment overrides. An empty filename skips the JSON file.
func Load(filename string, envFiles ...string) (*Config, error) {
	config := Default()
	if filename != "" {
		var err error
		config, err = LoadFromFile(filename)
		if err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from PHOTOCARD_* variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("MODE", &c.Server.Mode)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("TEMPLATE", &c.Render.Template)
	str("FOCUS_BACKEND", &c.Focus.Backend)
	str("FOCUS_URL", &c.Focus.URL)
	str("FOCUS_MODEL", &c.Focus.Model)

	for key, dst := range map[string]*int{
		"MAX_DIMENSION": &c.Normalizer.MaxDimension,
		"MIN_DIMENSION": &c.Normalizer.MinDimension,
		"MAX_UPLOAD_MB": &c.Server.MaxUploadMB,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Normalizer.MinDimension > c.Normalizer.MaxDimension {
		return fmt.Errorf("normalizer.min_dimension must not exceed normalizer.max_dimension")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "photocard", "config.json")
}
