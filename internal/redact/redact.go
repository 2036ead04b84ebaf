// Package redact removes sensitive information from strings before they are
// logged or returned in error responses. It covers credentials embedded in
// connection strings, API keys, signed query strings of media CDN URLs,
// inline media payloads, file paths and stack traces.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedQueryPlaceholder      = "[REDACTED_QUERY]"
	RedactedMediaPlaceholder      = "[REDACTED_MEDIA]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; earlier rules see the unmodified input.
var rules = []rule{
	// Stack trace fragments
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},

	// Inline media payloads
	{regexp.MustCompile(`data:([\w.+-]+/[\w.+-]+);base64,[A-Za-z0-9+/=]+`), "data:${1};base64," + RedactedMediaPlaceholder},

	// Credentials in connection strings (postgres, redis, ...)
	{regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*)://[^\s/@]+@`), "${1}://" + RedactedCredentialPlaceholder + "@"},

	// Query strings of http(s) URLs; media CDNs sign URLs with query tokens
	{regexp.MustCompile(`(https?://[^\s?#"']+)\?[^\s#"']+`), "${1}?" + RedactedQueryPlaceholder},

	// Google API keys
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), RedactedKeyPlaceholder},

	// Credentials and tokens in key/value form
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},

	// Absolute file paths
	{regexp.MustCompile(`(^|[\s(="'])(/[\w.-]+){2,}`), "${1}" + RedactedPathPlaceholder},

	// Email addresses
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// SQL statements
	{regexp.MustCompile(
		`(?i)\b(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\b[\s\w,*()]+\b(?:FROM|INTO|SET|TABLE)\b(?:[\s\w,*()='"$]+)?`,
	), "[REDACTED_SQL]"},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// URL returns a loggable form of a URL: user info, query and fragment are
// dropped and data URLs keep only their media type. Unparseable input is
// passed through String.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		header, _, _ := strings.Cut(raw, ",")
		return header + "," + RedactedMediaPlaceholder
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return String(raw)
	}

	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	if u.RawQuery != "" {
		return clean.String() + "?" + RedactedQueryPlaceholder
	}
	return clean.String()
}
