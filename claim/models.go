// Package claim defines the redemption record and its sync lifecycle.
package claim

import (
	"strings"
	"time"
)

// SyncStatus tracks propagation of a claim into the external allowlist
// service. Unsynced rows are picked up by reconciliation; synced is terminal;
// failed rows are retried on the next run.
type SyncStatus string

const (
	SyncUnsynced SyncStatus = ""
	SyncSynced   SyncStatus = "synced"
	SyncFailed   SyncStatus = "failed"
)

// ParseSyncStatus normalizes a stored status label. The external store has no
// schema, so legacy spellings ("added") map to synced rather than triggering
// a re-push.
func ParseSyncStatus(label string) SyncStatus {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "synced", "added":
		return SyncSynced
	case "failed":
		return SyncFailed
	default:
		return SyncUnsynced
	}
}

// Claim records one redemption: invitee consumed a code minted by inviter.
// Rows are append-only, one per invitee wallet.
type Claim struct {
	InviteeWallet string     `json:"invitee_wallet"`
	InviterWallet string     `json:"inviter_wallet"`
	ClaimedAt     time.Time  `json:"claimed_at"`
	Code          string     `json:"code"`
	SyncStatus    SyncStatus `json:"sync_status"`
}

// Synced reports whether the claim has reached the external allowlist.
func (c *Claim) Synced() bool {
	return c.SyncStatus == SyncSynced
}
