// Package textnorm canonicalizes free text for substring and fuzzy comparison.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, turns ASCII punctuation into spaces, collapses
// whitespace runs and trims the ends. It is idempotent.
func Normalize(s string) string {
	lowered := strings.ToLower(s)
	replaced := strings.Map(func(r rune) rune {
		if isPunct(r) {
			return ' '
		}
		return r
	}, lowered)
	return strings.Join(strings.Fields(replaced), " ")
}

// Tokens returns the whitespace tokens of the normalized text.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Compact strips everything but letters and digits and upper-cases the rest.
// "11 42-8 576 524" and "11428576524" compact to the same string.
func Compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// isPunct matches the ASCII punctuation set !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~.
func isPunct(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}
