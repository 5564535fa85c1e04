// Package code defines the single-use invite code entity and its
// generation policy.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Alphabet excludes visually ambiguous characters (0/O, 1/l/I/i) so codes
// survive being read aloud or retyped from a screenshot.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// Length is the number of characters in a generated code.
const Length = 8

// Accepted shape bounds for inbound codes. Lookups are exact-match and
// case-sensitive, so shape validation only bounds the length.
const (
	MinLength = 6
	MaxLength = 12
)

// InviteCode is a single-use token minted by an allowlisted wallet. It is
// terminal once used: Used, InviteeWallet and UsedAt never change again.
type InviteCode struct {
	Code          string     `json:"code"`
	InviterWallet string     `json:"inviter_wallet"`
	CreatedAt     time.Time  `json:"created_at"`
	Used          bool       `json:"used"`
	InviteeWallet string     `json:"invitee_wallet,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
}

// Generate returns a fresh random code drawn from Alphabet.
func Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("code: generate: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidShape reports whether s has an acceptable invite-code length.
func ValidShape(s string) bool {
	return len(s) >= MinLength && len(s) <= MaxLength
}
