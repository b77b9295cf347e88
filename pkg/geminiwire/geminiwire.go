// Package geminiwire provides the public API for embedding the Gemini
// transport as a library. It wraps the internal implementation with a
// stable, minimal surface.
package geminiwire

import (
	"github.com/nghyane/gemini-wire/internal/config"
	"github.com/nghyane/gemini-wire/internal/gemini"
	"github.com/nghyane/gemini-wire/internal/wire"
)

// Service is the canonical Gemini API client.
type Service = gemini.Service

// Config is the application configuration.
type Config = config.Config

// ConfigWatcher reloads the config file on change.
type ConfigWatcher = config.Watcher

// Client is the low-level typed transport.
type Client = wire.Client

// Option configures a Client.
type Option = wire.Option

// Error is a classified transport error.
type Error = wire.Error

// Kind identifies one case of the error taxonomy.
type Kind = wire.Kind

// Domain types.
type (
	Content                 = gemini.Content
	Part                    = gemini.Part
	GenerationConfig        = gemini.GenerationConfig
	SafetySetting           = gemini.SafetySetting
	GenerateContentRequest  = gemini.GenerateContentRequest
	GenerateContentResponse = gemini.GenerateContentResponse
	File                    = gemini.File
)

// Stream is a pull-based streamed-array response.
type Stream = wire.Stream[gemini.GenerateContentResponse]

// NewConfig creates a default configuration, reading GEMINI_API_KEY from
// the environment.
func NewConfig() *Config {
	return config.NewDefaultConfig()
}

// LoadConfig loads configuration from the specified YAML path.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// WatchConfig loads and watches a config file; onChange may be nil.
func WatchConfig(path string, onChange func(*Config)) (*ConfigWatcher, error) {
	return config.NewWatcher(path, onChange)
}

// NewService builds the canonical client from configuration.
func NewService(cfg *Config, opts ...Option) *Service {
	return gemini.NewService(cfg, opts...)
}

// Text is shorthand for a single user turn with one text part.
func Text(s string) []Content {
	return gemini.Text(s)
}
