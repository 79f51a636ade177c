// Package validate provides basic format checks for caregiver-entered
// and patient-dictated data.
package validate

import (
	"regexp"
	"strings"
)

var (
	phoneRE   = regexp.MustCompile(`^\+?\d{9,15}$`)
	phoneTrim = regexp.MustCompile(`[\s\-.]`)
	emailRE   = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// Phone reports whether s looks like a phone number: an optional
// leading plus and 9-15 digits, ignoring spaces, dashes, and periods.
// Deliberately loose, since numbers arrive dictated over voice.
func Phone(s string) bool {
	if s == "" {
		return false
	}
	return phoneRE.MatchString(phoneTrim.ReplaceAllString(s, ""))
}

// Email reports whether s looks like an email address.
func Email(s string) bool {
	if s == "" {
		return false
	}
	return emailRE.MatchString(s)
}

// Address reports whether s could plausibly be a postal address.
// An address should carry at least a number and a street name.
func Address(s string) bool {
	return len(strings.TrimSpace(s)) > 5
}
