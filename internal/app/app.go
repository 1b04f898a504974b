// Package app wires the speechcoach subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the analysis service
// and HTTP handler from the config, Run serves until the context ends, and
// Shutdown drains in-flight requests and releases providers. ApplyConfig is
// the hot-reload hook for the config watcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CoachAI26/ai/internal/analysis"
	"github.com/CoachAI26/ai/internal/api"
	"github.com/CoachAI26/ai/internal/config"
	"github.com/CoachAI26/ai/internal/health"
	"github.com/CoachAI26/ai/internal/observe"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	level     *slog.LevelVar

	svc     *analysis.Service
	limiter *api.ClientLimiter
	handler http.Handler
	server  *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the App the level variable of the process logger so
// that a reloaded log level takes effect immediately.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. The providers come from [BuildProviders];
// nil fields are treated as not configured.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(SlogLevel(cfg.Server.LogLevel))
	}

	// ── 1. Analysis service ──────────────────────────────────────────────
	svcOpts := []analysis.Option{
		analysis.WithMetrics(a.metrics),
		analysis.WithSettings(SettingsFromConfig(cfg.Analysis)),
	}
	if providers.STT != nil {
		svcOpts = append(svcOpts, analysis.WithTranscriber(providers.STT))
	}
	svc, err := analysis.New(providers.LLM, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: init analysis: %w", err)
	}
	a.svc = svc

	// ── 2. HTTP handler ──────────────────────────────────────────────────
	probes := health.New(
		availability("llm", providers.LLM != nil, providers.LLMAvailable),
		availability("stt", providers.STT != nil, providers.STTAvailable),
	)
	apiOpts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		api.WithRoutes(probes.Register),
		api.WithRoutes(func(mux *http.ServeMux) {
			mux.Handle("GET /metrics", promhttp.Handler())
		}),
	}
	if rps := cfg.Limits.RequestsPerSecond; rps > 0 {
		a.limiter = api.NewClientLimiter(rps, cfg.Limits.Burst)
		apiOpts = append(apiOpts, api.WithLimiter(a.limiter))
	}
	a.handler = api.New(svc, apiOpts...).Handler()

	a.server = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a, nil
}

// availability combines the configured check with the breaker probe.
func availability(name string, configured bool, probe func() bool) health.Checker {
	if !configured || probe == nil {
		return health.Configured(name, configured)
	}
	return health.Available(name, probe)
}

// Handler returns the complete HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the analysis service.
func (a *App) Service() *analysis.Service { return a.svc }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled
// or the listener fails. It returns ctx.Err() on cancellation.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.limiter != nil {
		go a.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		errCh <- err
	}()

	slog.Info("server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of a changed config: the log
// level and the analysis settings. Other changes are logged as needing a
// restart. It has the signature of the config watcher callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.HasChanges() {
		return
	}
	if d.LogLevelChanged {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AnalysisChanged {
		settings := SettingsFromConfig(new.Analysis)
		if err := a.svc.SetSettings(settings); err != nil {
			slog.Error("rejected reloaded analysis settings", "err", err)
		} else {
			slog.Info("analysis settings reloaded",
				"pause_threshold", settings.PauseThreshold,
				"preset", settings.Preset,
				"recommendations", settings.Recommendations,
			)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires, then releases the providers.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("app: http shutdown: %w", err)
		}
		if err := a.providers.Close(); err != nil {
			slog.Warn("provider close error", "err", err)
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// SettingsFromConfig converts the analysis section into service settings.
// Unset fields keep their defaults.
func SettingsFromConfig(c config.AnalysisConfig) analysis.Settings {
	s := analysis.DefaultSettings()
	if c.PauseThreshold != nil {
		s.PauseThreshold = *c.PauseThreshold
	}
	if c.ScoringPreset != "" {
		s.Preset = c.ScoringPreset
	}
	if c.Recommendations != "" {
		s.Recommendations = c.Recommendations
	}
	if c.ImproveText != nil {
		s.ImproveText = *c.ImproveText
	}
	if c.RequireEnglish != nil {
		s.RequireEnglish = *c.RequireEnglish
	}
	t := c.Timeouts
	for _, f := range []struct {
		dst *time.Duration
		src time.Duration
	}{
		{&s.Timeouts.FillerDetection, t.FillerDetection},
		{&s.Timeouts.Recommendations, t.Recommendations},
		{&s.Timeouts.Relevance, t.Relevance},
		{&s.Timeouts.Improvement, t.Improvement},
		{&s.Timeouts.Transcription, t.Transcription},
	} {
		if f.src != 0 {
			*f.dst = f.src
		}
	}
	return s
}

// SlogLevel maps a config log level onto slog.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
