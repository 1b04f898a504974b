package resilience

import (
	"context"
	"errors"

	"github.com/CoachAI26/ai/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the provider names in failover order.
func (f *STTFallback) Names() []string { return f.group.Names() }

// Available reports whether any backend's circuit breaker is closed or
// ready to probe.
func (f *STTFallback) Available() bool { return f.group.Available() }

// Transcribe runs req against the first healthy provider. An empty recording
// is rejected up front with [stt.ErrNoAudio] so that it neither trips a
// breaker nor walks the fallback chain.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return stt.Transcription{}, stt.ErrNoAudio
	}
	tr, err := ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.Transcription, error) {
		return p.Transcribe(ctx, req)
	})
	if err != nil && errors.Is(err, stt.ErrNoAudio) {
		return stt.Transcription{}, stt.ErrNoAudio
	}
	return tr, err
}
