// Package logging builds the service logger and scrubs secrets from values before they are logged.
package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx in keyword/value connection strings
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s]+`)

	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]*`)

	// OpenAI (sk-..., sk-proj-...) and Anthropic (sk-ant-...) keys
	apiKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`)

	queryKeyPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|key|token)=[A-Za-z0-9\-_]{16,}`)

	// user:pass@host in URLs
	urlCredentialPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// Redact removes API keys, bearer tokens and credentials from s.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, RedactedText)
	s = queryKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = urlCredentialPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	return s
}

// RedactError returns the redacted error message, or "" for nil.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// MaskAPIKey keeps the first 3 and last 4 characters of key: "sk-...wxyz".
// Keys of 8 characters or fewer are fully masked.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// Truncate shortens s to at most maxRunes characters, adding "..." when cut.
// It never splits a multi-byte character.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}
