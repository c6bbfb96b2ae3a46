package grading

import (
	"strings"
	"unicode"
)

// normalize trims, collapses internal whitespace and optionally casefolds, so
// that "  Let " and "let" compare equal for case-insensitive questions.
func normalize(s string, caseSensitive bool) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	if caseSensitive {
		return string(out)
	}
	return strings.ToLower(string(out))
}
