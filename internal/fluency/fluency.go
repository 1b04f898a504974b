// Package fluency computes the timing-derived speech metrics: word count and
// speaking rate, silence gaps between utterances, hesitation counts, and the
// fluency score that penalizes pauses and hesitations.
//
// Every function is pure and total. Missing timing data, zero durations and
// empty text produce zero values, never errors.
package fluency

import (
	"math"
	"regexp"
)

// DefaultPauseThreshold is the minimum gap, in seconds, counted as a pause.
const DefaultPauseThreshold = 0.5

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Round rounds x to the given number of decimal places, halves away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// CountWords returns the number of word tokens (runs of letters, digits or
// underscores) in text.
func CountWords(text string) int {
	return len(wordPattern.FindAllStringIndex(text, -1))
}

// Rate is the speaking-rate result.
type Rate struct {
	WordCount       int
	DurationSeconds float64 // rounded to 2 places
	WPM             float64 // rounded to 2 places
}

// CalculateRate counts the words in text and derives words per minute. A
// non-positive duration yields a WPM of 0.
func CalculateRate(text string, durationSeconds float64) Rate {
	words := CountWords(text)
	var wpm float64
	if durationSeconds > 0 {
		wpm = float64(words) / durationSeconds * 60
	}
	return Rate{
		WordCount:       words,
		DurationSeconds: Round(durationSeconds, 2),
		WPM:             Round(wpm, 2),
	}
}

// Score is the fluency result.
type Score struct {
	FluencyScore   float64 // 0-100, rounded to 2 places
	PauseRatio     float64 // pause time / total time, rounded to 3 places
	HesitationRate float64 // hesitations per 100 words, rounded to 2 places
}

// ScoreFluency converts pause time and hesitation count into a 0-100 score.
//
// The pause penalty is 50 points per unit of pause ratio, capped at 50; the
// hesitation penalty is half a point per hesitation per 100 words, capped at
// 30. A non-positive totalDuration returns the zero Score.
func ScoreFluency(totalDuration, totalPauseTime float64, hesitations, words int) Score {
	if totalDuration <= 0 {
		return Score{}
	}
	pauseRatio := totalPauseTime / totalDuration
	var hesitationRate float64
	if words > 0 {
		hesitationRate = float64(hesitations) / float64(words) * 100
	}

	pausePenalty := math.Min(pauseRatio*50, 50)
	hesitationPenalty := math.Min(hesitationRate*0.5, 30)
	score := math.Max(0, 100-pausePenalty-hesitationPenalty)

	return Score{
		FluencyScore:   Round(score, 2),
		PauseRatio:     Round(pauseRatio, 3),
		HesitationRate: Round(hesitationRate, 2),
	}
}
