// Package relevance judges whether a spoken answer addresses its challenge
// topic and penalizes the confidence scores of answers that do not.
//
// The gate fails open: any provider error or ambiguous reply counts as
// relevant, so infrastructure trouble never lowers a score.
package relevance

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/CoachAI26/ai/internal/confidence"
	"github.com/CoachAI26/ai/internal/fluency"
	"github.com/CoachAI26/ai/pkg/provider/llm"
)

const (
	// PenaltyFactor scales every score of an off-topic answer.
	PenaltyFactor = 0.5
	// MaxOffTopicConfidence caps the composite score of an off-topic answer.
	MaxOffTopicConfidence = 40.0
	// MaxOffTopicComponent caps each component score of an off-topic answer.
	MaxOffTopicComponent = 50.0
)

const systemPrompt = "You answer only YES or NO. No explanation."

const promptTemplate = `You are a strict judge. The challenge question/topic is:
"%s"

The user's spoken answer (transcribed) is:
"%s"

Is this answer clearly relevant to the question/topic? Does it address the same subject?
Answer with exactly one word: YES or NO.
- YES: the answer is about the same topic or directly responds to the question.
- NO: the answer is about something else, unrelated, or just filler/noise.`

// Gate asks a language model for a yes/no relevance verdict. It is safe for
// concurrent use.
type Gate struct {
	llm llm.Provider
}

// NewGate returns a Gate backed by provider.
func NewGate(provider llm.Provider) *Gate {
	return &Gate{llm: provider}
}

// Check asks whether transcript addresses title. It returns false only when
// the model clearly answers NO. The returned error is informational: when it
// is non-nil the verdict is always true.
func (g *Gate) Check(ctx context.Context, title, transcript string) (bool, error) {
	transcript = strings.TrimSpace(transcript)
	if title == "" || transcript == "" || g.llm == nil {
		return true, nil
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  0,
		MaxTokens:    10,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, title, transcript)},
		},
	})
	if err != nil {
		return true, fmt.Errorf("relevance: complete: %w", err)
	}
	if resp == nil {
		return true, fmt.Errorf("relevance: empty response")
	}
	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	return !strings.HasPrefix(verdict, "NO"), nil
}

// IsRelevant is [Gate.Check] without the diagnostic error.
func (g *Gate) IsRelevant(ctx context.Context, title, transcript string) bool {
	ok, _ := g.Check(ctx, title, transcript)
	return ok
}

// Penalize returns the replacement scores for an off-topic answer. Every
// score is halved, capped and rounded to two decimals, the rating becomes Low and the
// recommendations are replaced by two fixed messages naming title.
func Penalize(s confidence.Scores, title string) confidence.Scores {
	component := func(v float64) float64 {
		return fluency.Round(math.Min(v*PenaltyFactor, MaxOffTopicComponent), 2)
	}
	return confidence.Scores{
		ConfidenceScore: fluency.Round(math.Min(s.ConfidenceScore*PenaltyFactor, MaxOffTopicConfidence), 2),
		WPMScore:        component(s.WPMScore),
		FillerScore:     component(s.FillerScore),
		PauseScore:      component(s.PauseScore),
		HesitationScore: component(s.HesitationScore),
		Rating:          confidence.Low,
		Recommendations: OffTopicMessages(title),
	}
}

// OffTopicMessages returns the recommendations shown for an off-topic answer.
func OffTopicMessages(title string) []string {
	return []string{
		fmt.Sprintf("Your response doesn't seem to address the topic \"%s\".", title),
		"Please try again and speak about the given question or topic.",
	}
}
