package identity

import (
	"regexp"
	"strings"
)

// emailRe matches the usual local@domain.tld shape: no whitespace or extra "@",
// and at least one dot in the domain part.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinDeviceIDLen is the shortest deviceId accepted at enrollment.
const MinDeviceIDLen = 3

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s has a plausible email shape after trimming.
func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidDeviceID reports whether s is an acceptable opaque device identifier.
// Device IDs are caller-supplied; the only rule is a minimum length.
func ValidDeviceID(s string) bool {
	return len(strings.TrimSpace(s)) >= MinDeviceIDLen
}
