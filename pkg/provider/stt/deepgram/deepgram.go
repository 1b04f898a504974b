// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// pre-recorded REST API. It implements the stt.Provider interface.
//
// Deepgram drops hesitation sounds from its transcripts unless the
// filler_words feature is enabled, so every request sets it.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CoachAI26/ai/pkg/provider/stt"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage forces the recognition language (e.g., "en"). Without it
// Deepgram runs language detection.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the API endpoint. Intended for tests and proxies.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	endpoint   string
	httpClient *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe posts the recording to Deepgram and converts the utterance list
// into segments.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcription, error) {
	if len(req.Audio) == 0 {
		return stt.Transcription{}, stt.ErrNoAudio
	}

	u, err := p.buildURL(req)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(req.Audio))
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	ct := req.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", ct)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcription{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return parseDeepgramResponse(data)
}

// buildURL constructs the pre-recorded endpoint URL for req.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	q.Set("filler_words", "true")
	q.Set("utterances", "true")

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		q.Set("language", lang)
	} else {
		q.Set("detect_language", "true")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the subset of the pre-recorded response body we use.
type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// parseDeepgramResponse converts a raw pre-recorded response body into a
// Transcription.
func parseDeepgramResponse(data []byte) (stt.Transcription, error) {
	var r deepgramResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}

	out := stt.Transcription{Duration: r.Metadata.Duration}
	if len(r.Results.Channels) > 0 {
		ch := r.Results.Channels[0]
		out.Language = ch.DetectedLanguage
		if len(ch.Alternatives) > 0 {
			out.Text = strings.TrimSpace(ch.Alternatives[0].Transcript)
		}
	}
	for _, u := range r.Results.Utterances {
		out.Segments = append(out.Segments, stt.Segment{
			Start: u.Start,
			End:   u.End,
			Text:  u.Transcript,
		})
	}
	return out, nil
}
