// Package redact renders identifiers and secrets in a form safe for logs and audit events.
package redact

import "strings"

const tokenPrefixLen = 8

func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Token() string { return "[REDACTED_TOKEN]" }

// TokenPrefix returns the first characters of a token followed by an ellipsis.
// It is only meant for opt-in diagnostics.
func TokenPrefix(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= tokenPrefixLen {
		return Token()
	}
	return token[:tokenPrefixLen] + "..."
}
