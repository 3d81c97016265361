package logging

import (
	"regexp"
	"strings"
)

// Redactor masks customer contact data in log values.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternEmail = "email"
	PatternPhone = "phone"
)

// sensitiveKeys are attribute names whose values are always masked.
var sensitiveKeys = []string{
	"email", "phone", "password", "secret", "token", "authorization",
}

// NewRedactor creates a Redactor with the e-mail and phone patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				name:        PatternEmail,
				regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
				replacement: "***@$1",
			},
			{
				// E.164 numbers as stored on customer records.
				name:        PatternPhone,
				regex:       regexp.MustCompile(`\+\d{7,15}\b`),
				replacement: "+***",
			},
		},
	}
}

// RedactString masks every e-mail address and phone number in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether values logged under key are masked
// regardless of content.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Mask hides value, keeping a one-character hint for non-trivial strings.
func Mask(value string) string {
	if len(value) <= 4 {
		return "***"
	}
	return value[:1] + "***"
}
