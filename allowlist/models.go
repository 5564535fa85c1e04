// Package allowlist defines the quota-holding participant entity.
package allowlist

// Entry is a wallet authorized to hold and spend invite quota. Entries are
// seeded out of band and never deleted; only InvitesRemaining mutates.
type Entry struct {
	Wallet           string `json:"wallet"`
	InvitesRemaining int    `json:"invites_remaining"`
}
