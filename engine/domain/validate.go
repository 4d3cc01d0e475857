package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds a query in runes.
const MaxQueryLength = 256

// ValidateQuery trims raw and returns it, or a *ValidationError.
func ValidateQuery(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", NewValidationError("query", strings.ToValidUTF8(raw, "\uFFFD"), ErrInvalidText)
	}
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", NewValidationError("query", raw, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", NewValidationError("query", string([]rune(q)[:32])+"...", ErrQueryTooLong)
	}
	return q, nil
}
