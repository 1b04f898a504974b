package confidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/internal/llmjson"
	"github.com/CoachAI26/ai/pkg/provider/llm"
)

// MaxRecommendations caps the advice list.
const MaxRecommendations = 4

const recommendTemperature = 0.4

const recommendSystemPrompt = "You are a supportive public speaking coach. " +
	"You give short, specific and encouraging advice. Always return valid JSON only, no additional text."

const recommendPromptTemplate = `Analyze these speech metrics from a recorded answer and write 2 to 4 short recommendations to help the speaker sound more confident.

Metrics:
- Speaking rate: %.1f words per minute (optimal %g-%g)
- Words: %d
- Filler words: %d (%.1f per 100 words)
- Pauses: %d (%.1f%% of speaking time)
- Hesitation sounds: %d (%.1f per 100 words)
- Fluency score: %.1f / 100

Component scores (0-100): rate %.0f, fillers %.0f, pauses %.0f, hesitations %.0f.
Overall confidence: %.1f / 100 (%s).
%s
Rules:
1. Put the most impactful recommendation first.
2. Each recommendation is one or two sentences.
3. Be encouraging; mention what went well when the scores are high.
4. Refer to the challenge context when it helps.

Return a JSON object in this exact format:
{"recommendations": ["first recommendation", "second recommendation"]}`

// errNoRecommendations is returned when the reply holds no usable strings.
var errNoRecommendations = errors.New("confidence: reply contains no recommendations")

// LLMRecommender asks a language model for personalised advice. It is safe
// for concurrent use.
type LLMRecommender struct {
	llm    llm.Provider
	policy Policy
}

var _ Recommender = (*LLMRecommender)(nil)

// NewLLMRecommender returns an LLMRecommender quoting p's optimal rate band.
func NewLLMRecommender(provider llm.Provider, p Policy) *LLMRecommender {
	return &LLMRecommender{llm: provider, policy: p}
}

// Recommend implements [Recommender]. The reply may be a JSON list, an object
// wrapping a list, or text with an embedded list; entries that are not
// non-empty strings are dropped and at most [MaxRecommendations] are kept.
func (r *LLMRecommender) Recommend(ctx context.Context, m Metrics, s Scores, topic challenge.Topic) ([]string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: recommendSystemPrompt,
		Temperature:  recommendTemperature,
		JSONMode:     true,
		Messages: []llm.Message{
			{Role: "user", Content: r.buildPrompt(m, s, topic)},
		},
	}
	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("confidence: complete: %w", err)
	}
	if resp == nil {
		return nil, errNoRecommendations
	}

	list, err := llmjson.ExtractList(resp.Content, "recommendations", "tips", "suggestions")
	if err != nil {
		return nil, fmt.Errorf("confidence: parse reply: %w", err)
	}
	recs := llmjson.Strings(list, MaxRecommendations)
	if len(recs) == 0 {
		return nil, errNoRecommendations
	}
	return recs, nil
}

func (r *LLMRecommender) buildPrompt(m Metrics, s Scores, topic challenge.Topic) string {
	ctxBlock := topic.ContextBlock()
	if ctxBlock != "" {
		ctxBlock = "\n" + ctxBlock
	}
	return strings.TrimSpace(fmt.Sprintf(recommendPromptTemplate,
		m.WPM, r.policy.OptimalWPMLow, r.policy.OptimalWPMHigh,
		m.WordCount,
		m.FillerCount, m.FillerDensity(),
		m.TotalPauses, m.PauseRatio*100,
		m.TotalHesitations, m.HesitationRate,
		m.FluencyScore,
		s.WPMScore, s.FillerScore, s.PauseScore, s.HesitationScore,
		s.ConfidenceScore, s.Rating,
		ctxBlock,
	))
}
