package fluency

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/CoachAI26/ai/pkg/provider/stt"
)

func TestRound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		x      float64
		places int
		want   float64
	}{
		{0.125, 2, 0.13}, // exact half, away from zero
		{-0.125, 2, -0.13},
		{0.0625, 3, 0.063},
		{140, 2, 140},
	}
	for _, tt := range tests {
		if got := Round(tt.x, tt.places); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.x, tt.places, got, tt.want)
		}
	}
}

func TestCountWords(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hello world", 2},
		{"It's 5 o'clock, ok?", 6},
		{"snake_case counts once", 3},
		{"café naïve", 2},
		{"um... uh -- er", 3},
	}
	for _, tt := range tests {
		if got := CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCalculateRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		duration float64
		want     Rate
	}{
		{"basic", "one two three four five six", 3, Rate{WordCount: 6, DurationSeconds: 3, WPM: 120}},
		{"rounding", "one two three", 7, Rate{WordCount: 3, DurationSeconds: 7, WPM: 25.71}},
		{"duration rounded", "a b", 2.345678, Rate{WordCount: 2, DurationSeconds: 2.35, WPM: 51.16}},
		{"zero duration", "one two", 0, Rate{WordCount: 2, DurationSeconds: 0, WPM: 0}},
		{"negative duration", "one two", -4, Rate{WordCount: 2, DurationSeconds: -4, WPM: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateRate(tt.text, tt.duration); got != tt.want {
				t.Errorf("CalculateRate = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScoreFluency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                string
		duration, pauseTime float64
		hesitations, words  int
		want                Score
	}{
		{"zero duration", 0, 5, 3, 10, Score{}},
		{"negative duration", -1, 0, 0, 10, Score{}},
		{"perfect", 60, 0, 0, 150, Score{FluencyScore: 100}},
		{"pauses only", 60, 6, 0, 150, Score{FluencyScore: 95, PauseRatio: 0.1}},
		{"hesitations only", 60, 0, 3, 100, Score{FluencyScore: 98.5, HesitationRate: 3}},
		{"no words", 60, 0, 3, 0, Score{FluencyScore: 100}},
		{"penalties capped", 10, 20, 100, 100, Score{FluencyScore: 20, PauseRatio: 2, HesitationRate: 100}},
		{"ratio rounding", 30, 1, 1, 7, Score{FluencyScore: 91.19, PauseRatio: 0.033, HesitationRate: 14.29}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ScoreFluency(tt.duration, tt.pauseTime, tt.hesitations, tt.words)
			if got != tt.want {
				t.Errorf("ScoreFluency = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAnalyzePauses(t *testing.T) {
	t.Parallel()

	segments := []stt.Segment{
		{Start: 0, End: 1.2},
		{Start: 1.5, End: 3.0}, // 0.3 gap, ignored
		{Start: 3.8, End: 5.0}, // 0.8 gap
		{Start: 5.5, End: 6.0}, // 0.5 gap, exactly at threshold
		{Start: 7.333, End: 8}, // 1.333 gap
	}
	got := AnalyzePauses("um so uh I think hmm", segments, 0.5)

	if got.TotalPauses != 3 {
		t.Errorf("TotalPauses = %d, want 3", got.TotalPauses)
	}
	wantDurations := []float64{0.8, 0.5, 1.33}
	if len(got.PauseDurations) != len(wantDurations) {
		t.Fatalf("PauseDurations = %v, want %v", got.PauseDurations, wantDurations)
	}
	for i, d := range wantDurations {
		if math.Abs(got.PauseDurations[i]-d) > 1e-9 {
			t.Errorf("PauseDurations[%d] = %v, want %v", i, got.PauseDurations[i], d)
		}
	}
	if math.Abs(got.TotalPauseTime-2.63) > 1e-9 {
		t.Errorf("TotalPauseTime = %v, want 2.63", got.TotalPauseTime)
	}
	if math.Abs(got.AveragePauseDuration-0.88) > 1e-9 {
		t.Errorf("AveragePauseDuration = %v, want 0.88", got.AveragePauseDuration)
	}
	if got.TotalHesitations != 3 {
		t.Errorf("TotalHesitations = %d, want 3", got.TotalHesitations)
	}
	if want := []string{"um", "uh", "hmm"}; len(got.HesitationWords) != 3 || got.HesitationWords[2] != want[2] {
		t.Errorf("HesitationWords = %v, want %v", got.HesitationWords, want)
	}
	if got.PauseThresholdUsed != 0.5 {
		t.Errorf("PauseThresholdUsed = %v, want 0.5", got.PauseThresholdUsed)
	}
}

func TestAnalyzePauses_HesitationsAreWholeWords(t *testing.T) {
	t.Parallel()
	got := AnalyzePauses("Ahí está, um, the café éum was full uh", nil, 0.5)
	if got.TotalHesitations != 2 {
		t.Fatalf("TotalHesitations = %d (%v), want 2", got.TotalHesitations, got.HesitationWords)
	}
	if got.HesitationWords[0] != "um" || got.HesitationWords[1] != "uh" {
		t.Errorf("HesitationWords = %v, want [um uh]", got.HesitationWords)
	}
}

func TestAnalyzePauses_DegradedModes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		segments []stt.Segment
	}{
		{"nil segments", nil},
		{"single segment", []stt.Segment{{Start: 0, End: 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AnalyzePauses("ummm okay", tt.segments, DefaultPauseThreshold)
			if got.TotalPauses != 0 || got.TotalPauseTime != 0 || got.AveragePauseDuration != 0 {
				t.Errorf("pause stats = %+v, want zero", got)
			}
			if got.PauseDurations == nil || len(got.PauseDurations) != 0 {
				t.Errorf("PauseDurations = %#v, want empty non-nil", got.PauseDurations)
			}
			if got.TotalHesitations != 1 {
				t.Errorf("TotalHesitations = %d, want 1", got.TotalHesitations)
			}
		})
	}
}

func TestProperty_FluencyInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		duration := rapid.Float64Range(0.1, 600).Draw(rt, "duration")
		pause := rapid.Float64Range(0, 600).Draw(rt, "pause")
		words := rapid.IntRange(0, 2000).Draw(rt, "words")
		hes := rapid.IntRange(0, 500).Draw(rt, "hesitations")

		got := ScoreFluency(duration, pause, hes, words)
		if got.FluencyScore < 20 || got.FluencyScore > 100 {
			rt.Fatalf("FluencyScore = %v, want within [20, 100]", got.FluencyScore)
		}
	})
}

func TestProperty_PausesNeverBelowThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.Float64Range(0.1, 2).Draw(rt, "threshold")
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		var segs []stt.Segment
		at := 0.0
		for range n {
			at += rapid.Float64Range(0, 3).Draw(rt, "gap")
			length := rapid.Float64Range(0.1, 5).Draw(rt, "len")
			segs = append(segs, stt.Segment{Start: at, End: at + length})
			at += length
		}

		got := AnalyzePauses("", segs, threshold)
		if got.TotalPauses != len(got.PauseDurations) {
			rt.Fatalf("TotalPauses = %d, durations = %d", got.TotalPauses, len(got.PauseDurations))
		}
		if n < 2 && got.TotalPauses != 0 {
			rt.Fatalf("pauses reported for %d segments", n)
		}
		for _, d := range got.PauseDurations {
			if d < Round(threshold, 2) {
				rt.Fatalf("pause %v below threshold %v", d, threshold)
			}
		}
	})
}
