package payment

import (
	"errors"
	"strings"
)

// ErrInvalidPhone means the input cannot be normalized to a Kenyan MSISDN.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone canonicalizes a subscriber number to 254XXXXXXXXX form.
// Accepts local formats (07XXXXXXXX, 7XXXXXXXX), already-canonical numbers,
// and inputs with separators or a leading plus. Idempotent on its own output.
func NormalizePhone(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "0"):
		digits = "254" + digits[1:]
	case len(digits) == 9:
		digits = "254" + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, "254") {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
