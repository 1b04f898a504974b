package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoachAI26/ai/internal/confidence"
	"github.com/CoachAI26/ai/internal/fluency"
)

// Recommendation modes.
const (
	RecommendLLM   = "llm"
	RecommendRules = "rules"
)

// Timeouts bounds each external call made during one analysis. A zero value
// disables the bound for that call.
type Timeouts struct {
	FillerDetection time.Duration
	Recommendations time.Duration
	Relevance       time.Duration
	Improvement     time.Duration
	Transcription   time.Duration
}

// Settings are the tunable parts of the pipeline. They can be replaced on a
// running [Service] with [Service.SetSettings].
type Settings struct {
	// PauseThreshold is the minimum gap in seconds counted as a pause.
	PauseThreshold float64

	// Preset names the confidence scoring policy ("strict" or "lenient").
	Preset string

	// Recommendations selects how advice is produced: [RecommendLLM] or
	// [RecommendRules].
	Recommendations string

	// ImproveText enables the rewritten, filler-free version of the answer.
	ImproveText bool

	// RequireEnglish rejects transcriptions whose detected language is not
	// English.
	RequireEnglish bool

	Timeouts Timeouts
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		PauseThreshold:  fluency.DefaultPauseThreshold,
		Preset:          confidence.PresetStrict,
		Recommendations: RecommendLLM,
		ImproveText:     true,
		RequireEnglish:  true,
		Timeouts: Timeouts{
			FillerDetection: 20 * time.Second,
			Recommendations: 20 * time.Second,
			Relevance:       10 * time.Second,
			Improvement:     30 * time.Second,
			Transcription:   2 * time.Minute,
		},
	}
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.PauseThreshold < 0 {
		errs = append(errs, fmt.Errorf("pause threshold must be >= 0, got %v", s.PauseThreshold))
	}
	if _, err := confidence.PolicyByName(s.Preset); err != nil {
		errs = append(errs, err)
	}
	switch s.Recommendations {
	case "", RecommendLLM, RecommendRules:
	default:
		errs = append(errs, fmt.Errorf("recommendations mode %q is not one of %q, %q", s.Recommendations, RecommendLLM, RecommendRules))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"filler_detection", s.Timeouts.FillerDetection},
		{"recommendations", s.Timeouts.Recommendations},
		{"relevance", s.Timeouts.Relevance},
		{"improvement", s.Timeouts.Improvement},
		{"transcription", s.Timeouts.Transcription},
	} {
		if t.d < 0 {
			errs = append(errs, fmt.Errorf("timeout %s must be >= 0, got %s", t.name, t.d))
		}
	}
	return errors.Join(errs...)
}

// withTimeout derives a context bounded by d, or a plain cancellable one when
// d is zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
