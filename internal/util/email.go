package util

import (
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// All OTP state is keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LooksLikeEmail is the minimal syntactic check applied to inbound
// addresses: non-empty and containing an '@'.
func LooksLikeEmail(email string) bool {
	e := strings.TrimSpace(email)
	return e != "" && strings.Contains(e, "@")
}

// LocalPart returns the portion of the address before the first '@'.
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// MaskEmail keeps the first character of the local part and the domain,
// for log lines that should not carry full addresses.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
