package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MinLength is the minimum number of characters in an acceptable password.
	MinLength = 8
	// SpecialChars lists the characters that satisfy the special-character rule.
	SpecialChars = `!@#$%^&*(),.?":{}|<>`
)

// StrengthRules is returned verbatim on every rejection so callers cannot
// learn which rule failed.
var StrengthRules = fmt.Sprintf(`Password must satisfy all of the following rules:
- At least %d characters
- At least one uppercase letter
- At least one lowercase letter
- At least one digit
- At least one special character (%s)
- Not a commonly used password`, MinLength, SpecialChars)

var commonPasswords = map[string]struct{}{
	"password":    {},
	"123456":      {},
	"qwerty":      {},
	"abc123":      {},
	"admin123":    {},
	"welcome":     {},
	"welcome1":    {},
	"password123": {},
	"admin":       {},
	"user":        {},
}

// ValidateStrength checks pw against the composition policy. It returns
// (true, "") when every rule passes and (false, StrengthRules) otherwise.
func ValidateStrength(pw string) (bool, string) {
	if utf8.RuneCountInString(pw) < MinLength {
		return false, StrengthRules
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return false, StrengthRules
	}

	if _, common := commonPasswords[strings.ToLower(pw)]; common {
		return false, StrengthRules
	}

	return true, ""
}
