// Package redact scrubs sensitive material from strings before they reach
// logs or error responses: bearer credentials, user principal names, and
// upstream URLs whose query strings may carry continuation tokens.
package redact

import (
	"regexp"
)

// Redaction placeholders.
const (
	RedactedTokenPlaceholder = "[REDACTED_TOKEN]"
	RedactedUPNPlaceholder   = "[REDACTED_UPN]"
	RedactedURLPlaceholder   = "[REDACTED_URL]"
)

var (
	// Three-part base64url JWTs, as carried in Authorization headers.
	jwtRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Bearer credentials and client secrets in key=value or key: value form.
	credentialRegex = regexp.MustCompile(
		`(?i)(bearer\s+|client[_-]?secret|access[_-]?token|refresh[_-]?token)(['"\s:=]*)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// User principal names are email-shaped and identify real people.
	upnRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// URLs with query strings: pagination next links embed opaque server
	// tokens, so the whole query is dropped.
	urlQueryRegex = regexp.MustCompile(`https?://[^\s'"]+\?[^\s'"]+`)

	placeholders = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{jwtRegex, RedactedTokenPlaceholder},
		{credentialRegex, RedactedTokenPlaceholder},
		{urlQueryRegex, RedactedURLPlaceholder},
		{upnRegex, RedactedUPNPlaceholder},
	}
)

// String scrubs every known sensitive pattern from s.
func String(s string) string {
	for _, p := range placeholders {
		s = p.pattern.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Error scrubs an error's message. A nil error yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
