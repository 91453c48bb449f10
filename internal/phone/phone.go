package phone

import "strings"

// Normalize removes all non-digit characters from a phone number
func Normalize(phoneNumber string) string {
	var b strings.Builder
	b.Grow(len(phoneNumber))
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Candidates returns the digit strings a stored phone number may match.
// A 10-digit national number also matches with the country code prefixed,
// and a number already carrying the country code also matches without it.
func Candidates(phoneNumber, countryCode string) []string {
	digits := Normalize(phoneNumber)
	if digits == "" {
		return nil
	}

	candidates := []string{digits}
	countryCode = Normalize(countryCode)
	if countryCode == "" {
		return candidates
	}

	switch {
	case len(digits) == 10:
		candidates = append(candidates, countryCode+digits)
	case len(digits) == 10+len(countryCode) && strings.HasPrefix(digits, countryCode):
		candidates = append([]string{digits[len(countryCode):]}, candidates...)
	}
	return candidates
}

// Redact keeps the first three and last four digits, e.g. 555***4567
func Redact(phoneNumber string) string {
	digits := Normalize(phoneNumber)
	if len(digits) < 7 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:3] + "***" + digits[len(digits)-4:]
}

// International returns the number with the country code, as messaging services address it.
// A 10-digit national number gets the country code prefixed; anything else is returned as digits.
func International(phoneNumber, countryCode string) string {
	digits := Normalize(phoneNumber)
	countryCode = Normalize(countryCode)
	if len(digits) == 10 && countryCode != "" {
		return countryCode + digits
	}
	return digits
}
