package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes a field value for indexing (trim, collapse whitespace).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// PrepareFields returns a copy of fields with trimmed names and preprocessed
// values. Fields with a blank name are dropped.
func PrepareFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = Preprocess(value)
	}
	return out
}
