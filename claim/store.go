package claim

import "context"

// Store is the claim slice of the unified store interface.
type Store interface {
	AppendClaim(ctx context.Context, c *Claim) error
	GetClaimByInvitee(ctx context.Context, inviteeWallet string) (*Claim, error)
	ListClaims(ctx context.Context) ([]*Claim, error)
	// ListUnsyncedClaims returns claims whose status is neither synced nor
	// failed-terminal; failed rows are included so they retry next run.
	ListUnsyncedClaims(ctx context.Context) ([]*Claim, error)
	// MarkClaimSynced writes a sync status onto the row keyed by invitee
	// wallet. Idempotent: rewriting the same terminal value is harmless.
	MarkClaimSynced(ctx context.Context, inviteeWallet string, status SyncStatus) error
}
