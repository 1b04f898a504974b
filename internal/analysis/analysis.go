// Package analysis runs the complete speech-metrics pipeline for one spoken
// answer: transcription, filler detection and removal, speaking rate, pauses
// and hesitations, fluency, confidence scoring with recommendations, the
// relevance check against the challenge topic, and an improved rewrite.
//
// The language-model calls (filler suggestions, relevance and the rewrite)
// run concurrently. Each one is bounded by its own timeout and degrades to a
// local fallback instead of failing the analysis; only a missing transcript
// is a hard error.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/internal/confidence"
	"github.com/CoachAI26/ai/internal/disfluency"
	"github.com/CoachAI26/ai/internal/fluency"
	"github.com/CoachAI26/ai/internal/improve"
	"github.com/CoachAI26/ai/internal/observe"
	"github.com/CoachAI26/ai/internal/relevance"
	"github.com/CoachAI26/ai/pkg/provider/llm"
	"github.com/CoachAI26/ai/pkg/provider/stt"
)

var (
	// ErrEmptyTranscript is returned when there is no text to analyse.
	ErrEmptyTranscript = errors.New("analysis: transcript is empty")

	// ErrNonEnglish is returned by [Service.AnalyzeAudio] when English is
	// required and the detected language is something else.
	ErrNonEnglish = errors.New("analysis: speech is not in English")

	// ErrNoTranscriber is returned by [Service.AnalyzeAudio] when the service
	// was built without a transcription provider.
	ErrNoTranscriber = errors.New("analysis: no transcription provider configured")
)

// Components named in degradation logs and metrics.
const (
	componentFillers         = "fillers"
	componentRelevance       = "relevance"
	componentImprovement     = "improvement"
	componentRecommendations = "recommendations"
)

// Input is one transcript to analyse.
type Input struct {
	// Text is the transcript. Leading and trailing whitespace is ignored.
	Text string

	// Duration is the speaking time in seconds. When it is not positive it
	// is resolved from Segments.
	Duration float64

	// Segments holds the per-utterance timing, if known.
	Segments []stt.Segment

	// Topic is the challenge the answer responds to. Optional.
	Topic challenge.Topic

	// Language is the detected language, copied to the report.
	Language string
}

// Report is the complete result of one analysis.
type Report struct {
	Text        string            `json:"text"`
	FillerWords []disfluency.Span `json:"filler_words"`
	FillerCount int               `json:"filler_count"`
	CleanedText string            `json:"cleaned_text"`

	DurationSeconds float64 `json:"duration_seconds"`
	WordCount       int     `json:"word_count"`
	WPM             float64 `json:"wpm"`

	TotalPauses          int       `json:"total_pauses"`
	TotalHesitations     int       `json:"total_hesitations"`
	PauseDurations       []float64 `json:"pause_durations"`
	AveragePauseDuration float64   `json:"average_pause_duration"`
	TotalPauseTime       float64   `json:"total_pause_time"`
	HesitationWords      []string  `json:"hesitation_words"`
	PauseThresholdUsed   float64   `json:"pause_threshold_used"`

	FluencyScore   float64 `json:"fluency_score"`
	PauseRatio     float64 `json:"pause_ratio"`
	HesitationRate float64 `json:"hesitation_rate"`

	ConfidenceScore float64  `json:"confidence_score"`
	WPMScore        float64  `json:"wpm_score"`
	FillerScore     float64  `json:"filler_score"`
	PauseScore      float64  `json:"pause_score"`
	HesitationScore float64  `json:"hesitation_score"`
	OverallRating   string   `json:"overall_rating"`
	Recommendations []string `json:"recommendations"`

	ImprovedText string `json:"improved_text,omitempty"`
	Language     string `json:"language,omitempty"`
	IsRelevant   bool   `json:"is_relevant"`
}

// Service runs analyses. It is safe for concurrent use; every call works on
// its own data and the settings are read once per call.
type Service struct {
	llm      llm.Provider
	stt      stt.Provider
	detector *disfluency.Detector
	editor   *improve.Editor
	gate     *relevance.Gate
	metrics  *observe.Metrics
	settings atomic.Pointer[Settings]
}

// Option is a functional option for [New].
type Option func(*Service)

// WithTranscriber sets the speech-to-text provider used by
// [Service.AnalyzeAudio].
func WithTranscriber(p stt.Provider) Option {
	return func(s *Service) { s.stt = p }
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSettings sets the initial settings. Defaults to [DefaultSettings].
func WithSettings(cfg Settings) Option {
	return func(s *Service) { s.settings.Store(&cfg) }
}

// New creates a Service whose language-model steps use provider. A nil
// provider leaves only the local steps: the hesitation scan, the metrics and
// rule-based recommendations.
func New(provider llm.Provider, opts ...Option) (*Service, error) {
	s := &Service{
		llm:      provider,
		detector: disfluency.NewDetector(provider),
		editor:   improve.New(provider),
		gate:     relevance.NewGate(provider),
	}
	defaults := DefaultSettings()
	s.settings.Store(&defaults)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if err := s.Settings().Validate(); err != nil {
		return nil, fmt.Errorf("analysis: invalid settings: %w", err)
	}
	return s, nil
}

// Settings returns a copy of the active settings.
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// SetSettings atomically replaces the settings. Analyses already in flight
// finish with the settings they started with.
func (s *Service) SetSettings(cfg Settings) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("analysis: invalid settings: %w", err)
	}
	s.settings.Store(&cfg)
	return nil
}

// IsEnglish reports whether a detected language label means English. An
// empty label is accepted because not every backend reports one.
func IsEnglish(language string) bool {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "en", "english":
		return true
	}
	return false
}

// AnalyzeAudio transcribes req and analyses the transcript.
func (s *Service) AnalyzeAudio(ctx context.Context, req stt.Request, topic challenge.Topic) (*Report, error) {
	if s.stt == nil {
		return nil, ErrNoTranscriber
	}
	cfg := s.Settings()

	ctx, span := observe.StartSpan(ctx, "analysis.AnalyzeAudio")
	defer span.End()

	start := time.Now()
	tctx, cancel := withTimeout(ctx, cfg.Timeouts.Transcription)
	tr, err := s.stt.Transcribe(tctx, req)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("analysis: transcribe: %w", err)
	}
	observe.Logger(ctx).Debug("transcription finished",
		"language", tr.Language,
		"segments", len(tr.Segments),
		"duration", time.Since(start),
	)

	if strings.TrimSpace(tr.Text) == "" {
		return nil, ErrEmptyTranscript
	}
	if cfg.RequireEnglish && !IsEnglish(tr.Language) {
		return nil, fmt.Errorf("%w: detected %q", ErrNonEnglish, tr.Language)
	}

	report, err := s.analyze(ctx, cfg, Input{
		Text:     tr.Text,
		Duration: tr.SpeakingDuration(),
		Segments: tr.Segments,
		Topic:    topic,
		Language: tr.Language,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(), metricSource("audio"))
	return report, nil
}

// Analyze runs the pipeline on an existing transcript.
func (s *Service) Analyze(ctx context.Context, in Input) (*Report, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	defer span.End()

	start := time.Now()
	report, err := s.analyze(ctx, s.Settings(), in)
	if err != nil {
		return nil, err
	}
	s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(), metricSource("text"))
	return report, nil
}

func (s *Service) analyze(ctx context.Context, cfg Settings, in Input) (*Report, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}
	policy, err := confidence.PolicyByName(cfg.Preset)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	log := observe.Logger(ctx)

	var (
		suggested []disfluency.Span
		improved  string
		relevant  = true
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: model filler suggestions ────────────────────────────────
	eg.Go(func() error {
		cctx, cancel := withTimeout(egCtx, cfg.Timeouts.FillerDetection)
		defer cancel()
		spans, err := s.detector.Suggest(cctx, text)
		if err != nil {
			if ctxErr := egCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.degraded(ctx, log, componentFillers, err)
			return nil
		}
		suggested = spans
		return nil
	})

	// ── goroutine 2: relevance against the challenge title ───────────────────
	if in.Topic.Title != "" {
		eg.Go(func() error {
			cctx, cancel := withTimeout(egCtx, cfg.Timeouts.Relevance)
			defer cancel()
			ok, err := s.gate.Check(cctx, in.Topic.Title, text)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.degraded(ctx, log, componentRelevance, err)
			}
			relevant = ok
			return nil
		})
	}

	// ── goroutine 3: improved rewrite ────────────────────────────────────────
	if cfg.ImproveText && s.llm != nil {
		eg.Go(func() error {
			cctx, cancel := withTimeout(egCtx, cfg.Timeouts.Improvement)
			defer cancel()
			out, err := s.editor.Rewrite(cctx, text, in.Topic)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.degraded(ctx, log, componentImprovement, err)
				out = text
			}
			improved = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	fillers := disfluency.Merge(suggested, disfluency.Scan(text))
	cleaned := disfluency.Remove(text, fillers)

	duration := in.Duration
	if duration <= 0 {
		duration = stt.Transcription{Segments: in.Segments}.SpeakingDuration()
	}
	rate := fluency.CalculateRate(text, duration)
	pauses := fluency.AnalyzePauses(text, in.Segments, cfg.PauseThreshold)
	flu := fluency.ScoreFluency(duration, pauses.TotalPauseTime, pauses.TotalHesitations, rate.WordCount)

	metrics := confidence.Metrics{
		WPM:              rate.WPM,
		FillerCount:      len(fillers),
		WordCount:        rate.WordCount,
		TotalPauses:      pauses.TotalPauses,
		TotalHesitations: pauses.TotalHesitations,
		PauseRatio:       flu.PauseRatio,
		HesitationRate:   flu.HesitationRate,
		FluencyScore:     flu.FluencyScore,
	}

	var scores confidence.Scores
	if relevant {
		rctx, cancel := withTimeout(ctx, cfg.Timeouts.Recommendations)
		scores, err = confidence.NewScorer(policy, s.recommender(cfg, policy)).Evaluate(rctx, metrics, in.Topic)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("analysis: %w", ctxErr)
			}
			s.degraded(ctx, log, componentRecommendations, err)
		}
	} else {
		scores = relevance.Penalize(confidence.Compute(policy, metrics), in.Topic.Title)
		s.metrics.OffTopic.Add(ctx, 1)
		log.Info("answer judged off-topic", "title", in.Topic.Title)
	}

	s.metrics.FillersDetected.Add(ctx, int64(len(fillers)))
	s.metrics.RecordScore(ctx, scores.ConfidenceScore, string(scores.Rating), policy.Name)

	return &Report{
		Text:        text,
		FillerWords: fillers,
		FillerCount: len(fillers),
		CleanedText: cleaned,

		DurationSeconds: rate.DurationSeconds,
		WordCount:       rate.WordCount,
		WPM:             rate.WPM,

		TotalPauses:          pauses.TotalPauses,
		TotalHesitations:     pauses.TotalHesitations,
		PauseDurations:       pauses.PauseDurations,
		AveragePauseDuration: pauses.AveragePauseDuration,
		TotalPauseTime:       pauses.TotalPauseTime,
		HesitationWords:      pauses.HesitationWords,
		PauseThresholdUsed:   pauses.PauseThresholdUsed,

		FluencyScore:   flu.FluencyScore,
		PauseRatio:     flu.PauseRatio,
		HesitationRate: flu.HesitationRate,

		ConfidenceScore: scores.ConfidenceScore,
		WPMScore:        scores.WPMScore,
		FillerScore:     scores.FillerScore,
		PauseScore:      scores.PauseScore,
		HesitationScore: scores.HesitationScore,
		OverallRating:   string(scores.Rating),
		Recommendations: scores.Recommendations,

		ImprovedText: improved,
		Language:     in.Language,
		IsRelevant:   relevant,
	}, nil
}

// recommender picks the recommendation source for one analysis. A nil result
// selects the rule-based recommender.
func (s *Service) recommender(cfg Settings, p confidence.Policy) confidence.Recommender {
	if cfg.Recommendations == RecommendRules || s.llm == nil {
		return nil
	}
	return confidence.NewLLMRecommender(s.llm, p)
}

func (s *Service) degraded(ctx context.Context, log *slog.Logger, component string, err error) {
	log.Warn("analysis step degraded, using fallback", "component", component, "error", err)
	s.metrics.RecordDegraded(ctx, component)
}

func metricSource(source string) metric.MeasurementOption {
	return metric.WithAttributes(observe.Attr("source", source))
}
