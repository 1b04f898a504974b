package fluency

import (
	"github.com/CoachAI26/ai/internal/disfluency"
	"github.com/CoachAI26/ai/pkg/provider/stt"
)

// PauseStats summarizes silence gaps and hesitation sounds.
type PauseStats struct {
	TotalPauses          int
	TotalHesitations     int
	PauseDurations       []float64 // each rounded to 2 places, in segment order
	AveragePauseDuration float64   // rounded to 2 places
	TotalPauseTime       float64   // rounded to 2 places
	HesitationWords      []string  // matched text, in order of appearance
	PauseThresholdUsed   float64
}

// AnalyzePauses counts hesitation sounds in text and measures the gaps
// between consecutive segments. A gap (next.Start - current.End) is a pause
// when it is at least threshold seconds.
//
// With fewer than two segments only the hesitation figures are populated.
// The average and total are computed from the unrounded gaps.
func AnalyzePauses(text string, segments []stt.Segment, threshold float64) PauseStats {
	stats := PauseStats{
		PauseDurations:     []float64{},
		HesitationWords:    []string{},
		PauseThresholdUsed: threshold,
	}

	for _, m := range disfluency.HesitationIndex(text) {
		stats.HesitationWords = append(stats.HesitationWords, text[m[0]:m[1]])
	}
	stats.TotalHesitations = len(stats.HesitationWords)

	if len(segments) < 2 {
		return stats
	}

	var total float64
	for i := range len(segments) - 1 {
		gap := segments[i+1].Start - segments[i].End
		if gap < threshold {
			continue
		}
		total += gap
		stats.PauseDurations = append(stats.PauseDurations, Round(gap, 2))
	}
	stats.TotalPauses = len(stats.PauseDurations)
	stats.TotalPauseTime = Round(total, 2)
	if stats.TotalPauses > 0 {
		stats.AveragePauseDuration = Round(total/float64(stats.TotalPauses), 2)
	}
	return stats
}
