// Package normalize derives comparison keys from raw vendor fields. Keys are
// used only for equality checks and are never stored in place of the field.
package normalize

import (
	"regexp"
	"strings"
)

const (
	// MinPhoneDigits is the shortest phone key that may take part in a match.
	MinPhoneDigits = 10
	// MinAddressLen is the address key length that must be exceeded to match.
	MinAddressLen = 10
)

var (
	punctPattern      = regexp.MustCompile(`[^\w\s]`)
	spacePattern      = regexp.MustCompile(`\s+`)
	entitySuffixes    = regexp.MustCompile(`\b(inc|llc|corp|ltd|company|co|pllc)\b`)
	streetTypePattern = regexp.MustCompile(`\b(street|st|avenue|ave|road|rd|lane|ln|drive|dr|boulevard|blvd)\b`)
)

// BusinessName lowercases name, strips punctuation and legal-entity suffixes
// and collapses whitespace. An empty result is never comparable.
func BusinessName(name string) string {
	key := strings.ToLower(name)
	key = punctPattern.ReplaceAllString(key, "")
	key = entitySuffixes.ReplaceAllString(key, "")
	return collapse(key)
}

// Phone keeps only the ASCII digits of phone.
func Phone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for i := 0; i < len(phone); i++ {
		if c := phone[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Address lowercases addr, drops street-type words and punctuation and
// collapses whitespace.
func Address(addr string) string {
	key := strings.ToLower(addr)
	key = streetTypePattern.ReplaceAllString(key, "")
	key = punctPattern.ReplaceAllString(key, "")
	return collapse(key)
}

// Email lowercases email.
func Email(email string) string {
	return strings.ToLower(email)
}

// PhoneComparable reports whether a phone key is long enough to match.
func PhoneComparable(key string) bool {
	return len(key) >= MinPhoneDigits
}

// AddressComparable reports whether an address key is long enough to match.
func AddressComparable(key string) bool {
	return len(key) > MinAddressLen
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
