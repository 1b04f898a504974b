// Package llmjson extracts JSON payloads from free-form language model
// replies. Models asked for JSON still wrap it in markdown fences, surround it
// with prose, or nest the expected list under an arbitrary key; the helpers
// here recover the payload from all of those shapes.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be recovered from a reply.
var ErrNoJSON = errors.New("llmjson: no JSON payload in reply")

var (
	fencedArray = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	bareArray   = regexp.MustCompile(`(?s)\[.*?\]`)
	greedyArray = regexp.MustCompile(`(?s)\[.*\]`)
)

// StripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func StripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// ExtractList recovers a JSON list from content.
//
// The reply is first decoded as a whole (after fence stripping). A top-level
// array is returned as is. For an object, the first of keys holding an array
// wins; failing that, the array-valued field with the lexically smallest
// name. When the reply is not valid JSON, an array inside a markdown fence is
// tried, then any bracketed span in the text.
func ExtractList(content string, keys ...string) ([]any, error) {
	var v any
	if err := json.Unmarshal([]byte(StripMarkdown(content)), &v); err == nil {
		if list, ok := listFrom(v, keys); ok {
			return list, nil
		}
		return nil, ErrNoJSON
	}

	candidates := make([]string, 0, 3)
	if m := fencedArray.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := bareArray.FindString(content); m != "" {
		candidates = append(candidates, m)
	}
	if m := greedyArray.FindString(content); m != "" {
		candidates = append(candidates, m)
	}
	for _, c := range candidates {
		var list []any
		if err := json.Unmarshal([]byte(c), &list); err == nil {
			return list, nil
		}
	}
	return nil, ErrNoJSON
}

func listFrom(v any, keys []string) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		for _, k := range keys {
			if list, ok := t[k].([]any); ok {
				return list, true
			}
		}
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if list, ok := t[k].([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

// Strings keeps the non-empty (after trimming) string entries of list, in
// order, returning at most limit of them. limit ≤ 0 means no limit.
func Strings(list []any, limit int) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
