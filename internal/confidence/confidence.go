// Package confidence turns speech metrics into a weighted confidence score,
// a discrete rating and improvement recommendations.
//
// Four component scores come from piecewise-linear curves held in a
// [Policy]: speaking rate, filler density, pause ratio and hesitation rate.
// They are blended with the fluency score into the composite. Two presets
// exist, [Strict] (the default) and [Lenient].
package confidence

import (
	"context"
	"log/slog"

	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/internal/fluency"
)

// Rating is the discrete classification of a composite score.
type Rating string

// Ratings from best to worst.
const (
	Excellent Rating = "Excellent"
	Good      Rating = "Good"
	Moderate  Rating = "Moderate"
	Low       Rating = "Low"
	VeryLow   Rating = "Very Low"
)

// FallbackRecommendation is returned when recommendations cannot be generated.
const FallbackRecommendation = "Keep practicing to improve your speech confidence!"

// Metrics is the input of the scorer.
type Metrics struct {
	WPM              float64
	FillerCount      int
	WordCount        int
	TotalPauses      int
	TotalHesitations int
	PauseRatio       float64
	HesitationRate   float64
	FluencyScore     float64
}

// FillerDensity returns fillers per 100 words, or 0 without words.
func (m Metrics) FillerDensity() float64 {
	if m.WordCount <= 0 {
		return 0
	}
	return float64(m.FillerCount) / float64(m.WordCount) * 100
}

// Scores is the scorer output. All scores lie in [0, 100] and are rounded to
// two decimals.
type Scores struct {
	ConfidenceScore float64
	WPMScore        float64
	FillerScore     float64
	PauseScore      float64
	HesitationScore float64
	Rating          Rating
	Recommendations []string
}

// Compute evaluates the component curves, the composite and the rating.
// Recommendations are left empty.
func Compute(p Policy, m Metrics) Scores {
	wpm := p.WPM.Score(m.WPM)
	filler := p.FillerDensity.Score(m.FillerDensity())
	pause := p.PauseRatio.Score(m.PauseRatio)
	hesitation := p.HesitationRate.Score(m.HesitationRate)

	w := p.Weights
	composite := wpm*w.WPM + filler*w.Filler + pause*w.Pause + hesitation*w.Hesitation + m.FluencyScore*w.Fluency

	return Scores{
		ConfidenceScore: fluency.Round(composite, 2),
		WPMScore:        fluency.Round(wpm, 2),
		FillerScore:     fluency.Round(filler, 2),
		PauseScore:      fluency.Round(pause, 2),
		HesitationScore: fluency.Round(hesitation, 2),
		Rating:          p.Rate(composite),
	}
}

// Recommender produces improvement advice for a scored recording. A non-nil
// error means no usable advice was produced.
type Recommender interface {
	Recommend(ctx context.Context, m Metrics, s Scores, topic challenge.Topic) ([]string, error)
}

// Scorer combines a [Policy] with a [Recommender]. It is safe for concurrent
// use.
type Scorer struct {
	policy      Policy
	recommender Recommender
}

// NewScorer returns a Scorer. A nil recommender selects the rule-based one
// for p.
func NewScorer(p Policy, rec Recommender) *Scorer {
	if rec == nil {
		rec = NewRuleRecommender(p)
	}
	return &Scorer{policy: p, recommender: rec}
}

// Policy returns the scoring policy.
func (s *Scorer) Policy() Policy { return s.policy }

// Evaluate computes the scores and attaches recommendations. When the
// recommender fails or returns nothing the recommendations are
// [FallbackRecommendation] alone and the recommender's error is returned
// alongside the otherwise complete scores.
func (s *Scorer) Evaluate(ctx context.Context, m Metrics, topic challenge.Topic) (Scores, error) {
	out := Compute(s.policy, m)
	recs, err := s.recommender.Recommend(ctx, m, out, topic)
	if err == nil && len(recs) == 0 {
		err = errNoRecommendations
	}
	if err != nil {
		out.Recommendations = []string{FallbackRecommendation}
		return out, err
	}
	out.Recommendations = recs
	return out, nil
}

// Score is [Scorer.Evaluate] with the recommender error logged instead of
// returned.
func (s *Scorer) Score(ctx context.Context, m Metrics, topic challenge.Topic) Scores {
	out, err := s.Evaluate(ctx, m, topic)
	if err != nil {
		slog.Warn("confidence: recommendations unavailable, using fallback", "error", err)
	}
	return out
}
