package disfluency

import (
	"regexp"
	"slices"
	"strings"
)

var (
	wsRun          = regexp.MustCompile(`\s+`)
	spaceBeforePun = regexp.MustCompile(`\s+([,.;:!?])`)
	spaceAfterPun  = regexp.MustCompile(`([,.;:!?])\s+`)
)

// normalize collapses whitespace runs, drops whitespace before punctuation
// and leaves exactly one space after it.
func normalize(s string) string {
	s = wsRun.ReplaceAllString(s, " ")
	s = spaceBeforePun.ReplaceAllString(s, "$1")
	return spaceAfterPun.ReplaceAllString(s, "$1 ")
}

// Remove deletes spans from text and tidies the surrounding whitespace and
// punctuation.
//
// Spans may arrive in any order and may overlap; overlapping spans are
// coalesced and out-of-range parts are ignored. With nothing to delete the
// text is returned unchanged. Deletion runs from the last
// span to the first. After each deletion the remainder of the text from the
// deletion point is renormalized, so earlier offsets stay valid, and a final
// pass normalizes and trims the whole string.
func Remove(text string, spans []Span) string {
	runes := []rune(text)
	n := len(runes)

	work := make([]Span, 0, len(spans))
	for _, s := range spans {
		start, end := max(s.Position, 0), min(s.End(), n)
		if s.Length <= 0 || start >= end {
			continue
		}
		work = append(work, Span{Position: start, Length: end - start})
	}
	if len(work) == 0 {
		return text
	}

	slices.SortFunc(work, func(a, b Span) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return a.Length - b.Length
	})
	merged := work[:1]
	for _, s := range work[1:] {
		last := &merged[len(merged)-1]
		if s.Position < last.End() {
			if s.End() > last.End() {
				last.Length = s.End() - last.Position
			}
			continue
		}
		merged = append(merged, s)
	}

	for i := len(merged) - 1; i >= 0; i-- {
		s := merged[i]
		prefix := string(runes[:s.Position])
		suffix := normalize(string(runes[s.End():]))
		runes = []rune(prefix + suffix)
	}
	return strings.TrimSpace(normalize(string(runes)))
}
