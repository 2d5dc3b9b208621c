package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// Sanitizer strips markup from user supplied text.
type Sanitizer func(string) string

// StrictSanitizer removes every HTML element and trims the result.
func StrictSanitizer() Sanitizer {
	p := bluemonday.StrictPolicy()
	return func(s string) string {
		return strings.TrimSpace(p.Sanitize(s))
	}
}

// cleanText sanitizes text and checks its length. With required set an empty
// result is an error.
func cleanText(sanitize Sanitizer, field, text string, required bool) (string, error) {
	cleaned := sanitize(strings.TrimSpace(text))
	if cleaned == "" {
		if required {
			return "", apperrors.InvalidInput(field + " is required")
		}
		return "", nil
	}
	if utf8.RuneCountInString(cleaned) > domain.MaxCommentLength {
		return "", apperrors.InvalidInput(fmt.Sprintf("%s must be at most %d characters", field, domain.MaxCommentLength))
	}
	return cleaned, nil
}
