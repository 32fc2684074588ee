package calls

import (
	"fmt"
	"strings"
)

// NormalizePhone strips formatting and returns an E.164-like number.
// Ten-digit numbers are assumed to be North American.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) < 10:
		return "", fmt.Errorf("%w: need at least 10 digits, got %d", ErrInvalidPhone, len(digits))
	case len(digits) > 15:
		return "", fmt.Errorf("%w: more than 15 digits", ErrInvalidPhone)
	case len(digits) == 10:
		return "+1" + digits, nil
	default:
		return "+" + digits, nil
	}
}

// ConferenceNameFor derives the provider-visible conference name for a call.
func ConferenceNameFor(callID string) string { return "onhold-" + callID }
