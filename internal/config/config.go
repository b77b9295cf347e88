// Package config provides configuration for the Gemini transport: YAML file
// loading, .env credential pickup, defaults, and hot reload of a changed
// config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the public Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the API version used when none is configured.
	// File upload requires v1beta.
	DefaultAPIVersion = "v1beta"

	// DefaultRequestTimeout bounds unary calls.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultUploadChunkSize is 8MB, a multiple of the 256KB granularity the
	// resumable upload protocol expects.
	DefaultUploadChunkSize = 8 * 1024 * 1024

	apiKeyEnv = "GEMINI_API_KEY"
)

// Config is the application configuration, loaded from a YAML file with
// environment overrides.
type Config struct {
	// APIKey authenticates every call. Overridden by GEMINI_API_KEY.
	APIKey string `yaml:"api-key" json:"api-key"`

	// BaseURL is the API endpoint.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIVersion selects the versioned API surface (v1 or v1beta).
	APIVersion string `yaml:"api-version" json:"api-version"`

	// RequestTimeoutSeconds bounds unary calls; 0 means the default.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// ProxyURL routes outbound requests through a proxy when set.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// UploadChunkSize is the resumable upload chunk size in bytes.
	UploadChunkSize int `yaml:"upload-chunk-size" json:"upload-chunk-size"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`
}

// NewDefaultConfig returns a configuration with all defaults applied and
// the API key taken from the environment if present.
func NewDefaultConfig() *Config {
	cfg := &Config{
		BaseURL:         DefaultBaseURL,
		APIVersion:      DefaultAPIVersion,
		UploadChunkSize: DefaultUploadChunkSize,
	}
	cfg.applyEnv()
	return cfg
}

// LoadConfig reads a YAML configuration file, loads a sibling .env if one
// exists, applies environment overrides, and fills defaults.
func LoadConfig(path string) (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes into a Config with env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(apiKeyEnv)); key != "" {
		c.APIKey = key
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.UploadChunkSize <= 0 {
		c.UploadChunkSize = DefaultUploadChunkSize
	}
}

func (c *Config) validate() error {
	switch c.APIVersion {
	case "v1", "v1beta":
	default:
		return fmt.Errorf("config: unsupported api-version %q", c.APIVersion)
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("config: request-timeout-seconds must not be negative")
	}
	return nil
}

// RequestTimeout returns the configured unary call timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
