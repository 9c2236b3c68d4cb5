// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeWhatsAppID formats a WhatsApp sender identity to E.164.
// WhatsApp Cloud API wa_id values are international numbers without the
// leading plus sign. If parsing fails, the trimmed input is returned so the
// identity is still usable as an opaque key.
func NormalizeWhatsAppID(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") {
		candidate = "+" + candidate
	}

	number, err := phonenumbers.Parse(candidate, "")
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
