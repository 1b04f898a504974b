// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary, which exposes a REST API
// at POST /inference, and asks for the verbose_json response format so that
// per-segment timing is available for pause analysis. [NativeProvider] runs a
// whisper.cpp model in-process through the cgo bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080")
//	tr, err := p.Transcribe(ctx, stt.Request{Audio: data, Filename: "answer.wav"})
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CoachAI26/ai/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the whisper.cpp server Provider.
type Option func(*Provider)

// WithModel sets the model name sent to the server. Most whisper-server
// deployments load a single model and ignore the field.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage forces the recognition language (e.g., "en"). Without it the
// server runs language detection.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the HTTP client used to reach the server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the recording to the /inference endpoint as
// multipart/form-data and parses the verbose_json reply.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return stt.Transcription{}, stt.ErrNoAudio
	}

	body, contentType, err := p.encodeForm(req)
	if err != nil {
		return stt.Transcription{}, err
	}

	endpoint := p.serverURL + "/inference"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcription{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	tr, err := stt.ParseVerboseJSON(data)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: %w", err)
	}
	return tr, nil
}

// encodeForm builds the multipart body for an /inference request.
func (p *Provider) encodeForm(req stt.Request) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := req.Filename
	if name == "" {
		name = "audio.wav"
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("whisper: write audio data: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang == "" {
		lang = "auto"
	}
	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", strconv.FormatFloat(req.TemperatureOrDefault(), 'f', -1, 64)},
		{"prompt", req.PromptOrDefault()},
		{"language", lang},
	}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}
