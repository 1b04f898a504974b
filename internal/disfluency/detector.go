package disfluency

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CoachAI26/ai/internal/llmjson"
	"github.com/CoachAI26/ai/pkg/provider/llm"
)

const defaultTemperature = 0.1

const systemPrompt = "You are an expert at identifying filler words in spoken English. " +
	"You MUST find ALL hesitation sounds (um, uh, er, etc.) in the text. " +
	"Scan the entire text carefully and mark EVERY occurrence. Always return valid JSON only, no additional text."

// detectionPrompt is followed directly by the transcript.
const detectionPrompt = `You are an expert at identifying filler words and disfluencies in spoken English. Your task is to analyze the transcribed text and identify ALL filler words, hesitations, and unnecessary words that should be removed for clarity.

Filler words include:
- Hesitation sounds: "um", "uh", "er", "erm", "ah", "hmm" - ALWAYS mark these as fillers
- Filler phrases used as pauses: "like", "you know", "I mean", "sort of", "kind of" (only when used as fillers)
- Unnecessary qualifiers when used as fillers: "basically", "actually", "literally" (when not adding meaning)
- Repetitive confirmations: "right", "okay", "yeah" (when used as fillers, not as actual responses)
- Thinking pauses: "well", "so" (when used to stall, not to transition meaningfully)

CRITICAL RULES:
1. ALWAYS mark ALL hesitation sounds (um, uh, er, erm, ah, hmm) - these are ALWAYS fillers regardless of context
2. Find EVERY occurrence of hesitation sounds in the text - do not miss any!
3. DO NOT mark words that have actual meaning in context:
   - "you know" when used to check understanding or emphasize a point (e.g., "but, you know, I try my best")
   - "like" when comparing or giving examples (e.g., "shirt like this")
   - "right" when confirming a fact or asking for agreement
   - "well" when starting a thoughtful response or transition
   - "actually" when correcting or providing accurate information
4. Be precise - context matters for phrases, but hesitation sounds are ALWAYS fillers
5. Include the exact word/phrase as it appears in the text (preserve case)
6. Find the character position (index) where EACH filler word starts in the original text
7. Count carefully - if there are multiple "um" or "uh" in the text, mark ALL of them
8. Be thorough - scan the entire text character by character to find all filler words

IMPORTANT: You MUST find ALL occurrences of hesitation sounds. If the text contains multiple "um" or "uh", you MUST mark ALL of them, not just one!

Example: If text is "um I was um in the mall um today", you should find THREE "um" words, not just one!

Return your response as a JSON object with this exact format:
{
  "fillers": [
    {"word": "um", "position": 15, "length": 2},
    {"word": "uh", "position": 67, "length": 2}
  ]
}

If no filler words are found, return: {"fillers": []}

Text to analyze:
`

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(d *Detector) { d.temperature = temp }
}

// Detector combines the hesitation scan with a language-model pass. It is
// safe for concurrent use.
type Detector struct {
	llm         llm.Provider
	temperature float64
}

// NewDetector returns a Detector backed by provider. A nil provider disables
// the model pass, leaving only the scan.
func NewDetector(provider llm.Provider, opts ...Option) *Detector {
	d := &Detector{llm: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns the non-overlapping filler spans of text sorted by position.
//
// It never fails. When the model pass errors or replies with something
// unusable the result degrades to the scan alone.
func (d *Detector) Detect(ctx context.Context, text string) []Span {
	suggested, err := d.Suggest(ctx, text)
	if err != nil {
		slog.Warn("disfluency: model pass failed, using hesitation scan only", "error", err)
	}
	return Merge(suggested, Scan(text))
}

// Suggest runs only the model pass and returns its validated spans in reply
// order. Suggestions that do not match text at the reported offset are
// dropped silently; an error means the whole pass is unusable.
func (d *Detector) Suggest(ctx context.Context, text string) ([]Span, error) {
	if d.llm == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  d.temperature,
		JSONMode:     true,
		Messages: []llm.Message{
			{Role: "user", Content: detectionPrompt + text},
		},
	}
	resp, err := d.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("disfluency: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("disfluency: empty response")
	}

	items, err := llmjson.ExtractList(resp.Content, "fillers", "filler_words")
	if err != nil {
		return nil, fmt.Errorf("disfluency: parse reply: %w", err)
	}
	return validate(text, items), nil
}

// validate keeps the suggestions that point at a real occurrence of their
// word in text.
func validate(text string, items []any) []Span {
	runes := []rune(text)
	n := len(runes)

	var out []Span
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		word, ok := obj["word"].(string)
		if !ok || strings.TrimSpace(word) == "" {
			continue
		}
		pos, ok := asInt(obj["position"])
		if !ok || pos < 0 || pos >= n {
			continue
		}
		length := utf8.RuneCountInString(word)
		if raw, present := obj["length"]; present && raw != nil {
			if length, ok = asInt(raw); !ok {
				continue
			}
		}
		if length <= 0 || pos+length > n {
			continue
		}

		actual := strings.ToLower(strings.TrimSpace(string(runes[pos : pos+length])))
		lw := strings.ToLower(word)
		if actual == "" || (!strings.Contains(actual, lw) && !strings.Contains(lw, actual)) {
			continue
		}
		out = append(out, Span{Word: word, Position: pos, Length: length})
	}
	return out
}

// asInt accepts JSON numbers with no fractional part and numeric strings.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	}
	return 0, false
}
