package phone

import "strings"

// Normalize rewrites a raw phone number to international form.
//
// Rules:
// - whitespace and common punctuation are stripped
// - a 10-digit number starting with the local trunk prefix "0" is rewritten
//   by replacing the leading digit with +countryCode (0612345678 -> +33612345678)
// - any other number not already starting with "+" is prefixed with "+"
//
// The function is deterministic and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw, countryCode string) string {
	cleaned := strip(raw)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) == 10 && cleaned[0] == '0' && isDigits(cleaned) {
		return "+" + countryCode + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		return "+" + cleaned
	}
	return cleaned
}

// Equal reports whether two raw numbers normalize to the same international form.
func Equal(a, b, countryCode string) bool {
	return Normalize(a, countryCode) == Normalize(b, countryCode)
}

func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '.', '-', '(', ')', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
