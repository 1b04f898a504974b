// Package disfluency finds filler words and hesitation sounds in a transcript
// and removes them.
//
// Detection merges two independent producers: a deterministic scan for the
// hesitation-sound family (um, uh, er, erm, ah, hmm with repeated trailing
// letters) and a language-model pass that also catches contextual filler
// phrases ("like", "you know", "I mean"). Both always run; the scan is the
// ground truth for hesitation sounds and the model only adds to it.
//
// All positions and lengths count Unicode code points, not bytes.
package disfluency

import (
	"regexp"
	"slices"
	"unicode"
	"unicode/utf8"
)

// hesitationPattern matches a hesitation sound between ASCII word boundaries.
// RE2's \b only knows ASCII, so [HesitationIndex] rechecks the neighbours.
var hesitationPattern = regexp.MustCompile(`(?i)\b(um+|uh+|er+|erm+|ah+|hmm+)\b`)

// HesitationIndex returns the byte ranges of every whole-word hesitation
// sound in text. A match touching a letter or digit of any script, as in
// "Ahí" or "éum", is not a whole word. It is the one definition of the
// hesitation family; pause analysis counts with it too.
func HesitationIndex(text string) [][]int {
	matches := hesitationPattern.FindAllStringIndex(text, -1)
	out := matches[:0]
	for _, m := range matches {
		if wordRune(utf8.DecodeLastRuneInString(text[:m[0]])) || wordRune(utf8.DecodeRuneInString(text[m[1]:])) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func wordRune(r rune, size int) bool {
	return size > 0 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// Span is a detected filler occurrence in a transcript.
type Span struct {
	// Word is the filler as reported (the matched text for the scan).
	Word string `json:"word"`

	// Position is the code-point offset of the first character.
	Position int `json:"position"`

	// Length is the number of code points covered. Always > 0.
	Length int `json:"length"`
}

// End returns the code-point offset just past the span.
func (s Span) End() int { return s.Position + s.Length }

// Scan returns every hesitation sound in text, sorted by position.
func Scan(text string) []Span {
	matches := HesitationIndex(text)
	if len(matches) == 0 {
		return nil
	}
	spans := make([]Span, 0, len(matches))

	// Convert byte offsets to code-point offsets incrementally.
	bytePos, runePos := 0, 0
	for _, m := range matches {
		runePos += utf8.RuneCountInString(text[bytePos:m[0]])
		bytePos = m[0]
		word := text[m[0]:m[1]]
		spans = append(spans, Span{
			Word:     word,
			Position: runePos,
			Length:   utf8.RuneCountInString(word),
		})
	}
	return spans
}

// Merge unions model-suggested spans with scanned ones and resolves overlaps.
//
// Spans are keyed by (Position, Length); suggested spans come first, and every
// scanned span not already present is added. The union is then sorted by
// position (stable, so earlier entries win ties) and a span is kept only if
// it starts at or after the end of the last kept span.
func Merge(suggested, scanned []Span) []Span {
	type key struct{ pos, length int }
	seen := make(map[key]struct{}, len(suggested)+len(scanned))
	union := make([]Span, 0, len(suggested)+len(scanned))
	for _, group := range [][]Span{suggested, scanned} {
		for _, s := range group {
			k := key{s.Position, s.Length}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			union = append(union, s)
		}
	}

	slices.SortStableFunc(union, func(a, b Span) int { return a.Position - b.Position })

	out := make([]Span, 0, len(union))
	lastEnd := -1
	for _, s := range union {
		if s.Position >= lastEnd {
			out = append(out, s)
			lastEnd = s.End()
		}
	}
	return out
}
