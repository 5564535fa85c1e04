// Package wallet provides helpers for the 0x-prefixed 20-byte hex wallet
// addresses used as participant keys throughout the invite ledger.
package wallet

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValid reports whether s is a well-formed wallet address.
func IsValid(s string) bool {
	return addressPattern.MatchString(s)
}

// Normalize lowercases an address. All wallet comparisons in the ledger are
// case-insensitive, so stored keys and lookups go through Normalize first.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal compares two addresses case-insensitively.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Mask returns the abbreviated display form of an address, e.g.
// "0xAb58...9f3C". Used anywhere a wallet is exposed to another participant.
func Mask(s string) string {
	if len(s) < 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// FragmentsIn reports whether msg embeds both the leading and trailing
// fragments of addr. Signed ownership messages must reference the wallet they
// vouch for so a signature captured for one wallet cannot be replayed for
// another.
func FragmentsIn(msg, addr string) bool {
	if len(addr) < 10 {
		return false
	}
	return strings.Contains(msg, addr[:6]) && strings.Contains(msg, addr[len(addr)-4:])
}
