package generator

import (
	"strings"

	"github.com/ibeckermayer/xpilot/internal/types"
)

const ellipsis = "..."

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '‘', '’':
		return true
	}
	return false
}

// StripQuotes trims whitespace and removes at most one leading and one trailing quote.
// Models like to wrap the whole post in quotes.
func StripQuotes(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > 0 && isQuote(r[0]) {
		r = r[1:]
	}
	if len(r) > 0 && isQuote(r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r))
}

// Fit enforces the post length ceiling: longer text becomes its first 277 characters
// followed by "...". It reports whether truncation happened.
func Fit(s string) (string, bool) {
	r := []rune(s)
	if len(r) <= types.MaxPostLength {
		return s, false
	}
	keep := types.MaxPostLength - len(ellipsis)
	return string(r[:keep]) + ellipsis, true
}
