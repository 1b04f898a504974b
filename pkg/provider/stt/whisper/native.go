// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/CoachAI26/ai/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all requests; every Transcribe call creates its
// own inference context.
//
// Only WAV input is accepted since decoding happens in-process.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage forces the recognition language (e.g., "en", "de").
// Defaults to "auto", which lets whisper detect it.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: "auto",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes the WAV recording, runs whisper.cpp inference and
// returns the transcript with per-segment timing.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return stt.Transcription{}, stt.ErrNoAudio
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: %w", err)
	}

	samples, duration, err := decodeWAV(req.Audio)
	if err != nil {
		return stt.Transcription{}, err
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	wctx.SetInitialPrompt(req.PromptOrDefault())
	wctx.SetTemperature(float32(req.TemperatureOrDefault()))

	// whisper.cpp has no cancellation hook; the abort check runs per segment.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	tr := stt.Transcription{Duration: duration, Language: lang}
	if lang == "auto" {
		tr.Language = wctx.DetectedLanguage()
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return stt.Transcription{}, fmt.Errorf("whisper: %w", err)
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcription{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		tr.Segments = append(tr.Segments, stt.Segment{
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
			Text:  text,
		})
		if text != "" {
			parts = append(parts, text)
		}
	}
	tr.Text = strings.Join(parts, " ")
	return tr, nil
}
