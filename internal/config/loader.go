package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Config.Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai", "deepgram", "whisper", "whisper-native"},
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr      = ":8000"
	DefaultMaxUploadBytes  = 25 << 20
	DefaultReadTimeout     = time.Minute
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
	DefaultPauseThreshold  = 0.5
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, expands environment
// references, applies defaults and validates the result. An empty document
// yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ExpandEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces $VAR and ${VAR} references in provider API keys, base
// URLs and models with the environment values.
func (c *Config) ExpandEnv() {
	for _, e := range c.providerEntries() {
		e.APIKey = os.ExpandEnv(e.APIKey)
		e.BaseURL = os.ExpandEnv(e.BaseURL)
		e.Model = os.ExpandEnv(e.Model)
	}
}

// ApplyDefaults fills every unset field with its default. An "openai"
// provider without an API key takes it from OPENAI_API_KEY.
func (c *Config) ApplyDefaults() {
	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	for _, e := range c.providerEntries() {
		if e.Name == "openai" && e.APIKey == "" {
			e.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	a := &c.Analysis
	if a.PauseThreshold == nil {
		v := DefaultPauseThreshold
		a.PauseThreshold = &v
	}
	if a.ScoringPreset == "" {
		a.ScoringPreset = PresetStrict
	}
	if a.Recommendations == "" {
		a.Recommendations = RecommendLLM
	}
	if a.ImproveText == nil {
		v := true
		a.ImproveText = &v
	}
	if a.RequireEnglish == nil {
		v := true
		a.RequireEnglish = &v
	}
	t := &a.Timeouts
	for _, d := range []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&t.FillerDetection, 20 * time.Second},
		{&t.Recommendations, 20 * time.Second},
		{&t.Relevance, 10 * time.Second},
		{&t.Improvement, 30 * time.Second},
		{&t.Transcription, 2 * time.Minute},
	} {
		if *d.field == 0 {
			*d.field = d.def
		}
	}

	if c.Limits.RequestsPerSecond > 0 && c.Limits.Burst == 0 {
		c.Limits.Burst = max(1, int(c.Limits.RequestsPerSecond*2))
	}
}

// providerEntries returns pointers to every configured provider entry.
func (c *Config) providerEntries() []*ProviderEntry {
	out := []*ProviderEntry{&c.Providers.LLM, &c.Providers.STT}
	for i := range c.Fallbacks.LLM {
		out = append(out, &c.Fallbacks.LLM[i])
	}
	for i := range c.Fallbacks.STT {
		out = append(out, &c.Fallbacks.STT[i])
	}
	return out
}

// Validate checks that c contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func (c *Config) Validate() error {
	var errs []error

	// Server
	if c.Server.LogLevel != "" && !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", c.Server.MaxUploadBytes))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s %s must not be negative", name, d))
		}
	}
	if tls := c.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers: unknown names only warn.
	validateProviderName("llm", c.Providers.LLM.Name)
	validateProviderName("stt", c.Providers.STT.Name)
	if c.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; filler detection uses the hesitation scan only and recommendations are rule-based")
	}
	if c.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; audio uploads will be rejected")
	}

	// Fallbacks
	for i, e := range c.Fallbacks.LLM {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("fallbacks.llm[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range c.Fallbacks.STT {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("fallbacks.stt[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	if len(c.Fallbacks.LLM) > 0 && c.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("fallbacks.llm requires providers.llm"))
	}
	if len(c.Fallbacks.STT) > 0 && c.Providers.STT.Name == "" {
		errs = append(errs, errors.New("fallbacks.stt requires providers.stt"))
	}
	cb := c.Fallbacks.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("fallbacks.circuit_breaker values must not be negative"))
	}

	// Analysis
	a := c.Analysis
	if a.PauseThreshold != nil && *a.PauseThreshold < 0 {
		errs = append(errs, fmt.Errorf("analysis.pause_threshold %v must not be negative", *a.PauseThreshold))
	}
	if a.ScoringPreset != "" && a.ScoringPreset != PresetStrict && a.ScoringPreset != PresetLenient {
		errs = append(errs, fmt.Errorf("analysis.scoring_preset %q is invalid; valid values: strict, lenient", a.ScoringPreset))
	}
	switch a.Recommendations {
	case "", RecommendRules:
	case RecommendLLM:
		if c.Providers.LLM.Name == "" {
			slog.Warn("analysis.recommendations is llm but no LLM provider is configured; falling back to rules")
		}
	default:
		errs = append(errs, fmt.Errorf("analysis.recommendations %q is invalid; valid values: llm, rules", a.Recommendations))
	}
	for name, d := range map[string]time.Duration{
		"filler_detection": a.Timeouts.FillerDetection,
		"recommendations":  a.Timeouts.Recommendations,
		"relevance":        a.Timeouts.Relevance,
		"improvement":      a.Timeouts.Improvement,
		"transcription":    a.Timeouts.Transcription,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("analysis.timeouts.%s %s must not be negative", name, d))
		}
	}

	// Limits
	if c.Limits.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("limits.requests_per_second %v must not be negative", c.Limits.RequestsPerSecond))
	}
	if c.Limits.Burst < 0 {
		errs = append(errs, fmt.Errorf("limits.burst %d must not be negative", c.Limits.Burst))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
