// Package validate provides input validation for request parameters that
// flow into storage lookups. Parameterized queries remain the primary
// defense; this layer rejects obviously malformed input early.
package validate

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// MaxIDLength caps identifiers taken from path segments or request bodies.
const MaxIDLength = 128

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MaxLength  int  // Maximum length in runes (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
	TrimSpace  bool // Whether to trim whitespace before validation
}

// String validates a string against the given constraints. It returns the
// validated (and optionally trimmed) string.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if constraints.AllowEmpty {
			return s, nil
		}
		return "", ErrEmpty
	}
	if constraints.MaxLength > 0 && utf8.RuneCountInString(s) > constraints.MaxLength {
		return "", ErrStringTooLong
	}
	return s, nil
}

// ID validates an identifier: non-blank after trimming, bounded length,
// and no whitespace or control characters.
func ID(s string) (string, error) {
	s, err := String(s, StringConstraints{MaxLength: MaxIDLength, TrimSpace: true})
	if err != nil {
		return "", err
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", ErrInvalidCharacters
		}
	}
	return s, nil
}
