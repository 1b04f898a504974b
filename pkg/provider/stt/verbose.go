package stt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// verboseJSON mirrors the "verbose_json" response format shared by the OpenAI
// transcription API and the whisper.cpp server.
type verboseJSON struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// ParseVerboseJSON decodes a whisper-style verbose_json body into a
// Transcription. Segment text is trimmed; the transcript text is trimmed of
// surrounding whitespace.
func ParseVerboseJSON(data []byte) (Transcription, error) {
	var v verboseJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return Transcription{}, fmt.Errorf("stt: parse verbose_json: %w", err)
	}

	out := Transcription{
		Text:     strings.TrimSpace(v.Text),
		Language: v.Language,
		Duration: v.Duration,
	}
	if len(v.Segments) > 0 {
		out.Segments = make([]Segment, 0, len(v.Segments))
		for _, s := range v.Segments {
			out.Segments = append(out.Segments, Segment{
				Start: s.Start,
				End:   s.End,
				Text:  strings.TrimSpace(s.Text),
			})
		}
	}
	return out, nil
}
