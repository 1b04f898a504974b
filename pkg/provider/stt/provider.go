// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., OpenAI Whisper,
// Deepgram pre-recorded, or a local whisper.cpp model) and turns one complete
// audio recording into text plus per-utterance timing. Speech analysis needs
// the hesitation sounds ("um", "uh", ...) that most engines strip by default,
// so backends are asked to keep them wherever the API allows it.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNoAudio is returned by Transcribe when the request carries no audio bytes.
var ErrNoAudio = errors.New("stt: no audio supplied")

// DefaultPrompt primes whisper-family models to transcribe hesitation sounds
// verbatim instead of silently cleaning them up.
const DefaultPrompt = "um um um This is a spoken transcription. um uh er Please transcribe EVERYTHING exactly as spoken. " +
	"um uh er erm ah hmm Include ALL filler words like: um, uh, er, erm, ah, hmm, mmm, umm, uhh. " +
	"Do NOT remove or skip any hesitation sounds. Transcribe um every single um word and sound. " +
	"Example: 'um I was um in the mall um today' should be transcribed exactly as 'um I was um in the mall um today'. " +
	"Preserve all um uh er sounds exactly as they are spoken."

// DefaultTemperature is the sampling temperature used when a Request leaves
// Temperature unset.
const DefaultTemperature = 0.2

// Request describes a single recording to transcribe.
type Request struct {
	// Audio is the complete encoded recording (mp3, wav, m4a, ...).
	Audio []byte

	// Filename is the original upload name. Several backends use the extension
	// to pick a decoder.
	Filename string

	// ContentType is the MIME type reported by the client, if any.
	ContentType string

	// Prompt is an optional decoding hint. Empty means [DefaultPrompt].
	Prompt string

	// Language forces the recognition language (ISO-639-1, e.g. "en"). Empty
	// lets the backend detect it so the caller can enforce a language policy.
	Language string

	// Temperature is the decoding temperature. Zero means [DefaultTemperature].
	Temperature float64
}

// PromptOrDefault returns r.Prompt, or [DefaultPrompt] when it is empty.
func (r Request) PromptOrDefault() string {
	if r.Prompt == "" {
		return DefaultPrompt
	}
	return r.Prompt
}

// TemperatureOrDefault returns r.Temperature, or [DefaultTemperature] when it is zero.
func (r Request) TemperatureOrDefault() float64 {
	if r.Temperature == 0 {
		return DefaultTemperature
	}
	return r.Temperature
}

// Segment is one timed utterance chunk. Segments are ordered by Start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text,omitempty"`
}

// Transcription is the result of a batch transcription.
type Transcription struct {
	// Text is the full transcript.
	Text string

	// Duration is the top-level audio duration in seconds, when reported.
	Duration float64

	// Segments holds per-utterance timing. Nil when the backend returns none.
	Segments []Segment

	// Language is the detected (or forced) language, e.g. "english" or "en".
	// Empty when unknown.
	Language string
}

// SpeakingDuration resolves the duration used for speaking-rate metrics. The
// candidates are tried in order and the first strictly positive one wins:
//
//  1. the sum of (End - Start) over all segments (speaking time),
//  2. the top-level Duration,
//  3. the End of the last segment.
//
// It returns 0 when none of them is positive.
func (t Transcription) SpeakingDuration() float64 {
	var speaking float64
	for _, s := range t.Segments {
		speaking += s.End - s.Start
	}
	if speaking > 0 {
		return speaking
	}
	if t.Duration > 0 {
		return t.Duration
	}
	if n := len(t.Segments); n > 0 && t.Segments[n-1].End > 0 {
		return t.Segments[n-1].End
	}
	return 0
}

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe converts the recording in req into a Transcription. It returns
	// [ErrNoAudio] for an empty recording and respects ctx cancellation.
	Transcribe(ctx context.Context, req Request) (Transcription, error)
}
