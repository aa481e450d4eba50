package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers
	if cfg.Providers.Extract.APIKey == "" {
		slog.Warn("providers.extract.api_key is empty; document extraction will fail for non-text uploads")
	}
	if cfg.Providers.TTS.APIKey == "" {
		slog.Warn("providers.tts.api_key is empty; audio synthesis will be unavailable")
	}
	if cfg.Providers.Align.APIKey == "" {
		slog.Warn("providers.align.api_key is empty; forced alignment will be unavailable")
	}
	if s := cfg.Providers.TTS.Stability; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("providers.tts.stability %.2f is out of range [0, 1]", s))
	}
	// The voice pool is a fixed pair: characters alternate between exactly
	// two voice identities.
	if n := len(cfg.Providers.TTS.Voices); n != 0 && n != 2 {
		errs = append(errs, fmt.Errorf("providers.tts.voices has %d entries; the voice pool must contain exactly 2", n))
	}
	if cfg.Providers.Extract.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("providers.extract.max_tokens %d must not be negative", cfg.Providers.Extract.MaxTokens))
	}
	if cfg.Providers.Extract.Timeout < 0 {
		errs = append(errs, fmt.Errorf("providers.extract.timeout %s must not be negative", cfg.Providers.Extract.Timeout))
	}

	// Limits
	if cfg.Limits.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("limits.max_upload_bytes %d must not be negative", cfg.Limits.MaxUploadBytes))
	}
	if cfg.Limits.MaxPDFPages < 0 {
		errs = append(errs, fmt.Errorf("limits.max_pdf_pages %d must not be negative", cfg.Limits.MaxPDFPages))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; projects will be kept in memory and lost on restart")
	}

	// Breaker
	if cfg.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("breaker.reset_timeout %s must not be negative", cfg.Breaker.ResetTimeout))
	}

	return errors.Join(errs...)
}
