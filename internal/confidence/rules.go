package confidence

import (
	"context"
	"fmt"

	"github.com/CoachAI26/ai/internal/challenge"
)

// RuleRecommender derives recommendations from fixed thresholds. It never
// fails.
type RuleRecommender struct {
	optimalLow, optimalHigh float64
}

var _ Recommender = RuleRecommender{}

// NewRuleRecommender returns a RuleRecommender quoting p's optimal rate band.
func NewRuleRecommender(p Policy) RuleRecommender {
	return RuleRecommender{optimalLow: p.OptimalWPMLow, optimalHigh: p.OptimalWPMHigh}
}

// Recommend implements [Recommender]. At most one line is produced per area
// (rate, fillers, pauses, hesitations). With no line a congratulation is
// returned; with exactly one a general closing line is appended.
func (r RuleRecommender) Recommend(_ context.Context, m Metrics, s Scores, _ challenge.Topic) ([]string, error) {
	var recs []string

	switch {
	case m.WPM < 100:
		recs = append(recs, fmt.Sprintf("Try to speak slightly faster. Optimal speaking rate is %g-%g WPM.", r.optimalLow, r.optimalHigh))
	case m.WPM > 200:
		recs = append(recs, "Consider slowing down your speech for better clarity and comprehension.")
	case s.WPMScore < 80:
		recs = append(recs, fmt.Sprintf("Aim for a speaking rate between %g-%g WPM for optimal communication.", r.optimalLow, r.optimalHigh))
	}

	switch density := m.FillerDensity(); {
	case density > 5:
		recs = append(recs, fmt.Sprintf("Reduce filler words (currently %.1f per 100 words). Practice pausing silently instead of using 'um' or 'uh'.", density))
	case density > 2:
		recs = append(recs, "You're doing well! Try to reduce filler words even further for more confident speech.")
	}

	switch {
	case m.PauseRatio > 0.20:
		recs = append(recs, fmt.Sprintf("Reduce pauses (currently %.1f%% of speaking time). Plan your thoughts before speaking.", m.PauseRatio*100))
	case m.PauseRatio > 0.10:
		recs = append(recs, "Consider reducing pause time slightly for more fluid speech.")
	}

	switch {
	case m.HesitationRate > 6:
		recs = append(recs, fmt.Sprintf("Work on reducing hesitations (currently %.1f per 100 words). Practice speaking more smoothly.", m.HesitationRate))
	case m.HesitationRate > 3:
		recs = append(recs, "Good progress! Continue working on reducing hesitation sounds.")
	}

	switch len(recs) {
	case 0:
		recs = append(recs, "Excellent! Your speech shows high confidence. Keep up the great work!")
	case 1:
		recs = append(recs, "Overall, your speech is good. Focus on the area mentioned above.")
	}
	return recs, nil
}
