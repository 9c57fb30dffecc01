// internal/game/sanitize.go
//
// Input sanitation for free-text fields (chat messages, game names).
// This is defense-in-depth: output encoding at render time is the
// client's job, but known script/markup injection patterns are stripped
// here anyway so they never reach the store.

package game

import (
	"regexp"
	"strings"
	"unicode"
)

// TextError is the reason a text input was rejected.
type TextError string

const (
	ErrTextEmpty   TextError = "text is empty"
	ErrTextTooLong TextError = "text exceeds maximum length"
	ErrTextInvalid TextError = "text contains disallowed characters"
)

func (e TextError) Error() string { return string(e) }

var (
	scriptTagRe = regexp.MustCompile(`(?i)<\s*/?\s*script[^>]*>`)
	eventAttrRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	jsSchemeRe  = regexp.MustCompile(`(?i)javascript\s*:`)
)

// SanitizeText trims s, enforces the length bound, rejects control
// characters, and strips known injection patterns. Returns the sanitized
// string; the returned error is a TextError on rejection.
func SanitizeText(s string, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrTextEmpty
	}
	if len(s) > maxLen {
		return "", ErrTextTooLong
	}
	for _, r := range s {
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && r != '\n') {
			return "", ErrTextInvalid
		}
	}
	s = scriptTagRe.ReplaceAllString(s, "")
	s = eventAttrRe.ReplaceAllString(s, "")
	s = jsSchemeRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrTextEmpty
	}
	return s, nil
}
