// Package config provides the configuration schema, loader, provider registry
// and file watcher for the speechcoach service.
package config

import "time"

// LogLevel controls log verbosity for the server.
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

// Scoring presets accepted by analysis.scoring_preset.
const (
	PresetStrict  = "strict"
	PresetLenient = "lenient"
)

// Recommendation modes accepted by analysis.recommendations.
const (
	RecommendLLM   = "llm"
	RecommendRules = "rules"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Fallbacks FallbacksConfig `yaml:"fallbacks"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default ":8000".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps the size of an uploaded recording. Default 25 MiB,
	// the largest file the hosted transcription API accepts.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// ReadTimeout bounds reading a whole request, upload included.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the handler plus response write. It must cover
	// transcription and every model call of one analysis.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is how long in-flight requests may run after SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

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

// ProvidersConfig selects the primary provider for each capability. Each
// entry names a provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// "${VAR}" references are expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// FallbacksConfig lists extra providers tried in order when the primary
// fails or its circuit breaker is open.
type FallbacksConfig struct {
	LLM            []ProviderEntry      `yaml:"llm"`
	STT            []ProviderEntry      `yaml:"stt"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the per-provider breakers. Zero values select
// the breaker defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// AnalysisConfig holds the pipeline settings. All of them can be changed
// without a restart.
type AnalysisConfig struct {
	// PauseThreshold is the minimum silence in seconds counted as a pause.
	// Default 0.5.
	PauseThreshold *float64 `yaml:"pause_threshold"`

	// ScoringPreset selects the confidence banding: "strict" (default) or
	// "lenient".
	ScoringPreset string `yaml:"scoring_preset"`

	// Recommendations selects "llm" (default) or "rules".
	Recommendations string `yaml:"recommendations"`

	// ImproveText enables the rewritten answer. Default true.
	ImproveText *bool `yaml:"improve_text"`

	// RequireEnglish rejects recordings in other languages. Default true.
	RequireEnglish *bool `yaml:"require_english"`

	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig bounds each external call of one analysis.
type TimeoutsConfig struct {
	FillerDetection time.Duration `yaml:"filler_detection"`
	Recommendations time.Duration `yaml:"recommendations"`
	Relevance       time.Duration `yaml:"relevance"`
	Improvement     time.Duration `yaml:"improvement"`
	Transcription   time.Duration `yaml:"transcription"`
}

// LimitsConfig configures the per-client request limiter. A zero
// RequestsPerSecond disables limiting.
type LimitsConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}
