// Package config provides the configuration schema and loader for the
// scriptpipe server.
package config

import "time"

// LogLevel controls log verbosity for the scriptpipe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for scriptpipe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    LimitsConfig    `yaml:"limits"`
	Storage   StorageConfig   `yaml:"storage"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// ServerConfig holds network and logging settings for the scriptpipe server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig holds the external service credentials and tuning for each
// pipeline stage.
type ProvidersConfig struct {
	Extract ExtractConfig `yaml:"extract"`
	TTS     TTSConfig     `yaml:"tts"`
	Align   AlignConfig   `yaml:"align"`
}

// ExtractConfig configures the document-understanding service used for
// script extraction.
type ExtractConfig struct {
	// APIKey authenticates against the extraction service.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the service's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the extraction model (default "gpt-4o-mini").
	Model string `yaml:"model"`

	// MaxTokens caps the extraction response size.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds a single extraction call. Zero means the provider default.
	Timeout time.Duration `yaml:"timeout"`
}

// TTSConfig configures the multi-speaker dialogue synthesis service.
type TTSConfig struct {
	// APIKey authenticates against the synthesis service.
	APIKey string `yaml:"api_key"`

	// Model selects the synthesis model (default "eleven_v3").
	Model string `yaml:"model"`

	// Stability is the voice stability setting in [0, 1].
	Stability float64 `yaml:"stability"`

	// Voices overrides the default two-voice pool. When set it must contain
	// exactly two voice identifiers.
	Voices []string `yaml:"voices"`
}

// AlignConfig configures the forced-alignment service.
type AlignConfig struct {
	// APIKey authenticates against the alignment service.
	APIKey string `yaml:"api_key"`
}

// LimitsConfig holds the upload ceilings enforced before extraction.
type LimitsConfig struct {
	// MaxUploadBytes is the document size ceiling. Default: 5 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxPDFPages is the PDF page-count ceiling. Default: 10.
	MaxPDFPages int `yaml:"max_pdf_pages"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// PostgresDSN is the project database connection string. When empty the
	// server falls back to an in-memory store (development only).
	PostgresDSN string `yaml:"postgres_dsn"`

	// AudioDir is the directory synthesized audio artifacts are written to.
	AudioDir string `yaml:"audio_dir"`

	// AudioURLPrefix is the path prefix audio is served under. Default "/audio/".
	AudioURLPrefix string `yaml:"audio_url_prefix"`
}

// BreakerConfig holds circuit breaker knobs shared by all guarded services.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure threshold before a breaker opens.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long a breaker stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the number of probe calls permitted while half-open.
	HalfOpenMax int `yaml:"half_open_max"`
}
