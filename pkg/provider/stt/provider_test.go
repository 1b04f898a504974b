package stt_test

import (
	"testing"

	"github.com/CoachAI26/ai/pkg/provider/stt"
)

func TestSpeakingDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tr   stt.Transcription
		want float64
	}{
		{
			name: "segment speaking time wins",
			tr: stt.Transcription{
				Duration: 30,
				Segments: []stt.Segment{{Start: 0, End: 4}, {Start: 5, End: 9}},
			},
			want: 8,
		},
		{
			name: "top-level duration when no segments",
			tr:   stt.Transcription{Duration: 12.5},
			want: 12.5,
		},
		{
			name: "top-level duration when segments are zero-length",
			tr: stt.Transcription{
				Duration: 7,
				Segments: []stt.Segment{{Start: 3, End: 3}},
			},
			want: 7,
		},
		{
			name: "last segment end as final fallback",
			tr: stt.Transcription{
				Segments: []stt.Segment{{Start: 2, End: 2}, {Start: 6, End: 6}},
			},
			want: 6,
		},
		{
			name: "nothing positive",
			tr:   stt.Transcription{},
			want: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.tr.SpeakingDuration(); got != tc.want {
				t.Errorf("SpeakingDuration() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRequestDefaults(t *testing.T) {
	t.Parallel()

	var r stt.Request
	if r.PromptOrDefault() != stt.DefaultPrompt {
		t.Error("empty prompt should fall back to DefaultPrompt")
	}
	if r.TemperatureOrDefault() != stt.DefaultTemperature {
		t.Errorf("temperature: got %v, want %v", r.TemperatureOrDefault(), stt.DefaultTemperature)
	}

	r = stt.Request{Prompt: "custom", Temperature: 0.7}
	if r.PromptOrDefault() != "custom" {
		t.Errorf("prompt: got %q, want custom", r.PromptOrDefault())
	}
	if r.TemperatureOrDefault() != 0.7 {
		t.Errorf("temperature: got %v, want 0.7", r.TemperatureOrDefault())
	}
}
