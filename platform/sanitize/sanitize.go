// Package sanitize provides text sanitization utilities for user-supplied content.
package sanitize

import (
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes all HTML tags from a string, making it safe for text-only
// display. Inbound social messages occasionally carry markup pasted from web
// clients; dashboard previews and CRM notes must never render it.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Preview returns a sanitized, length-capped preview of message text for
// conversation listings and realtime notifications. The cap counts runes so
// multi-byte text is never cut mid-character.
func Preview(s string, max int) string {
	clean := StripHTML(s)
	if max <= 0 {
		return clean
	}
	runes := []rune(clean)
	if len(runes) > max {
		return string(runes[:max])
	}
	return clean
}
