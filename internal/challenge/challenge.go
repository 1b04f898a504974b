// Package challenge describes the speaking prompt a recording answers.
package challenge

import "strings"

// Topic is the optional context of a speaking challenge. All fields may be
// empty.
type Topic struct {
	Level    string `json:"level,omitempty"`
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
}

// IsZero reports whether no field is set.
func (t Topic) IsZero() bool {
	return t.Level == "" && t.Category == "" && t.Title == ""
}

// ContextBlock renders the set fields as a "Challenge context:" list for
// inclusion in a prompt, or "" for the zero Topic.
func (t Topic) ContextBlock() string {
	if t.IsZero() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Challenge context:\n")
	for _, f := range [][2]string{{"Level", t.Level}, {"Category", t.Category}, {"Title", t.Title}} {
		if f[1] == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(f[0])
		sb.WriteString(": ")
		sb.WriteString(f[1])
		sb.WriteByte('\n')
	}
	return sb.String()
}
