package allowlist

import "context"

// Store is the allowlist slice of the unified store interface.
type Store interface {
	// GetAllowlistEntry looks up an entry by wallet, case-insensitively.
	GetAllowlistEntry(ctx context.Context, wallet string) (*Entry, error)
	ListAllowlist(ctx context.Context) ([]*Entry, error)
	// UpdateInvitesRemaining writes back a new quota value for wallet.
	// The store locates the row by wallet key at write time; it does not
	// provide compare-and-swap, so callers must serialize per wallet.
	UpdateInvitesRemaining(ctx context.Context, wallet string, remaining int) error
}
