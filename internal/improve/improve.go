// Package improve rewrites a transcript into a cleaner version of the same
// answer using a language model.
package improve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/pkg/provider/llm"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2000
)

const systemPrompt = "You are a professional speech editor that improves transcribed speech."

const editPrompt = `You are a professional speech editor. Your task is to improve the following transcribed speech by making it more concise, clear, and natural while preserving the original meaning and tone.

Guidelines:
1. Remove all filler words and hesitations (um, uh, like, you know, etc.)
2. Fix any grammar or syntax errors
3. Make the speech more concise by removing unnecessary repetition
4. Improve sentence structure and flow
5. Keep the original meaning and tone intact
6. Maintain a conversational style
7. Keep technical terms and proper nouns as-is

Input text to improve:`

// Option is a functional option for configuring an [Editor].
type Option func(*Editor)

// WithTemperature sets the sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(e *Editor) { e.temperature = temp }
}

// WithMaxTokens caps the length of the rewritten text. Default: 2000.
func WithMaxTokens(n int) Option {
	return func(e *Editor) { e.maxTokens = n }
}

// Editor produces improved versions of transcripts. It is safe for
// concurrent use.
type Editor struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// New returns an Editor backed by provider.
func New(provider llm.Provider, opts ...Option) *Editor {
	e := &Editor{llm: provider, temperature: defaultTemperature, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Improve returns the rewritten text. It never fails: on any provider error
// or an empty reply the original text is returned.
func (e *Editor) Improve(ctx context.Context, text string, topic challenge.Topic) string {
	improved, err := e.Rewrite(ctx, text, topic)
	if err != nil {
		slog.Warn("improve: rewrite failed, returning original text", "error", err)
		return text
	}
	return improved
}

// Rewrite is [Editor.Improve] with the error surfaced. Blank text and a nil
// provider return text unchanged.
func (e *Editor) Rewrite(ctx context.Context, text string, topic challenge.Topic) (string, error) {
	if e.llm == nil || strings.TrimSpace(text) == "" {
		return text, nil
	}

	var user strings.Builder
	user.WriteString(editPrompt)
	if block := topic.ContextBlock(); block != "" {
		user.WriteString("\n\n")
		user.WriteString(block)
	}
	user.WriteString("\n\n")
	user.WriteString(text)

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
		Messages:     []llm.Message{{Role: "user", Content: user.String()}},
	})
	if err != nil {
		return "", fmt.Errorf("improve: complete: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("improve: empty response")
	}

	improved := strings.TrimSpace(resp.Content)
	improved = strings.TrimPrefix(improved, `"`)
	improved = strings.TrimSuffix(improved, `"`)
	if strings.TrimSpace(improved) == "" {
		return "", fmt.Errorf("improve: empty reply")
	}
	return improved, nil
}
