package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/CoachAI26/ai/internal/config"
	"github.com/CoachAI26/ai/internal/observe"
	"github.com/CoachAI26/ai/internal/resilience"
	"github.com/CoachAI26/ai/pkg/provider/llm"
	"github.com/CoachAI26/ai/pkg/provider/llm/anyllm"
	oaillm "github.com/CoachAI26/ai/pkg/provider/llm/openai"
	"github.com/CoachAI26/ai/pkg/provider/stt"
	"github.com/CoachAI26/ai/pkg/provider/stt/deepgram"
	oaistt "github.com/CoachAI26/ai/pkg/provider/stt/openai"
	"github.com/CoachAI26/ai/pkg/provider/stt/whisper"
)

// Default models for providers whose entry leaves Model empty.
const (
	defaultOpenAIChatModel  = "gpt-4o-mini"
	defaultOpenAISTTModel   = "whisper-1"
	defaultProviderDeadline = 2 * time.Minute
)

// Providers holds the provider values the service runs on. A nil provider
// is not configured.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider

	// LLMAvailable and STTAvailable report whether any backend of the
	// failover group has a usable circuit breaker. Nil means always.
	LLMAvailable func() bool
	STTAvailable func() bool

	// closers release provider resources (native models) on shutdown.
	closers []func() error
}

// RegisterBuiltinProviders wires every built-in provider factory into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization", ""); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		opts = append(opts, oaillm.WithTimeout(defaultProviderDeadline))
		return oaillm.New(entry.APIKey, modelOr(entry, defaultOpenAIChatModel), opts...)
	})

	// The remaining hosted backends share one shape: optional APIKey and
	// BaseURL handed to any-llm.
	for _, providerName := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server addressed by BaseURL only.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization", ""); org != "" {
			opts = append(opts, oaistt.WithOrganization(org))
		}
		opts = append(opts, oaistt.WithTimeout(defaultProviderDeadline))
		return oaistt.New(entry.APIKey, modelOr(entry, defaultOpenAISTTModel), opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelOr(entry, entry.OptionString("model_path", "")), opts...)
	})
}

func modelOr(entry config.ProviderEntry, def string) string {
	if entry.Model != "" {
		return entry.Model
	}
	return def
}

// BuildProviders instantiates the configured providers through reg. Every
// capability is wrapped in a failover group, even with a single backend,
// so circuit breaking and provider metrics always apply. On error every
// provider created so far is closed.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (_ *Providers, err error) {
	ps := &Providers{}
	defer func() {
		if err == nil {
			return
		}
		if cerr := ps.Close(); cerr != nil {
			slog.Warn("closing providers after failed build", "error", cerr)
		}
	}()
	cb := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Fallbacks.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.Fallbacks.CircuitBreaker.ResetTimeout,
		HalfOpenMax:  cfg.Fallbacks.CircuitBreaker.HalfOpenMax,
	}

	if cfg.Providers.LLM.Name != "" {
		group, err := buildGroup(ps, "llm", cfg.Providers.LLM, cfg.Fallbacks.LLM, reg.CreateLLM,
			func(primary llm.Provider, name string) *resilience.LLMFallback {
				return resilience.NewLLMFallback(primary, name, resilience.FallbackConfig{
					CircuitBreaker: breakerConfig(cb, m, "llm"),
					OnAttempt:      attemptRecorder(m, "llm"),
				})
			})
		if err != nil {
			return nil, err
		}
		ps.LLM = group
		ps.LLMAvailable = group.Available
	}

	if cfg.Providers.STT.Name != "" {
		group, err := buildGroup(ps, "stt", cfg.Providers.STT, cfg.Fallbacks.STT, reg.CreateSTT,
			func(primary stt.Provider, name string) *resilience.STTFallback {
				return resilience.NewSTTFallback(primary, name, resilience.FallbackConfig{
					CircuitBreaker: breakerConfig(cb, m, "stt"),
					OnAttempt:      attemptRecorder(m, "stt"),
				})
			})
		if err != nil {
			return nil, err
		}
		ps.STT = group
		ps.STTAvailable = group.Available
	}

	return ps, nil
}

// failoverGroup is implemented by [resilience.LLMFallback] and
// [resilience.STTFallback].
type failoverGroup[T any] interface {
	AddFallback(name string, provider T)
	Names() []string
}

// buildGroup creates the primary and every fallback entry of one
// capability. An unregistered fallback is skipped with a warning; an
// unregistered primary is an error.
func buildGroup[T any, G failoverGroup[T]](
	ps *Providers,
	kind string,
	primary config.ProviderEntry,
	fallbacks []config.ProviderEntry,
	create func(config.ProviderEntry) (T, error),
	newGroup func(primary T, name string) G,
) (G, error) {
	var zero G
	p, err := create(primary)
	if err != nil {
		return zero, fmt.Errorf("app: create %s provider %q: %w", kind, primary.Name, err)
	}
	ps.track(p)
	group := newGroup(p, primary.Name)

	for i, entry := range fallbacks {
		fp, err := create(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not registered, skipping", "kind", kind, "name", entry.Name)
			continue
		}
		if err != nil {
			return zero, fmt.Errorf("app: create %s fallback %d (%q): %w", kind, i, entry.Name, err)
		}
		ps.track(fp)
		group.AddFallback(entry.Name, fp)
	}
	slog.Info("provider created", "kind", kind, "chain", group.Names())
	return group, nil
}

// track remembers providers that hold resources needing release.
func (ps *Providers) track(p any) {
	if c, ok := p.(interface{ Close() error }); ok {
		ps.closers = append(ps.closers, c.Close)
	}
}

// Close releases provider resources.
func (ps *Providers) Close() error {
	var errs []error
	for _, c := range ps.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// breakerConfig attaches a transition counter for kind to a copy of cb.
func breakerConfig(cb resilience.CircuitBreakerConfig, m *observe.Metrics, kind string) resilience.CircuitBreakerConfig {
	cb.OnStateChange = func(provider string, _, to resilience.State) {
		m.RecordBreakerTransition(context.Background(), provider, kind, to.String())
	}
	return cb
}

// attemptRecorder turns failover attempts into provider metrics. A call that
// failed after the caller's context ended is recorded as canceled; a backend
// timeout under a live context is an error.
func attemptRecorder(m *observe.Metrics, kind string) func(context.Context, string, time.Duration, error) {
	return func(ctx context.Context, provider string, elapsed time.Duration, err error) {
		aborted := err != nil && ctx.Err() != nil
		ctx = context.WithoutCancel(ctx)
		status := "ok"
		switch {
		case aborted:
			status = "canceled"
		case err != nil:
			status = "error"
			m.RecordProviderError(ctx, provider, kind)
		}
		m.RecordProviderRequest(ctx, provider, kind, status)
		m.ProviderDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(observe.Attr("provider", provider), observe.Attr("kind", kind)))
	}
}
