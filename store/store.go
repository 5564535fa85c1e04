// Package store defines the unified storage interface for the invite ledger.
//
// The backing substrate is a spreadsheet-style service with no transactions,
// no unique constraints, and no compare-and-swap. Every method is a single
// read or a single keyed write; all cross-row invariants are enforced by the
// engine, which serializes conflicting writers per wallet and per code.
package store

import (
	"context"
	"time"

	"github.com/davemagnier/youmio-invite/allowlist"
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
)

// Store is the unified storage interface for all ledger entities. The
// per-entity method sets are declared explicitly rather than by embedding the
// sub-interfaces, to keep the full surface readable in one place.
type Store interface {
	// Allowlist methods
	GetAllowlistEntry(ctx context.Context, wallet string) (*allowlist.Entry, error)
	ListAllowlist(ctx context.Context) ([]*allowlist.Entry, error)
	UpdateInvitesRemaining(ctx context.Context, wallet string, remaining int) error

	// Invite code methods
	AppendInviteCode(ctx context.Context, c *code.InviteCode) error
	GetInviteCode(ctx context.Context, codeValue string) (*code.InviteCode, error)
	ListInviteCodes(ctx context.Context) ([]*code.InviteCode, error)
	ListInviteCodesByInviter(ctx context.Context, inviterWallet string) ([]*code.InviteCode, error)
	MarkInviteCodeUsed(ctx context.Context, codeValue, inviteeWallet string, usedAt time.Time) error

	// Claim methods
	AppendClaim(ctx context.Context, c *claim.Claim) error
	GetClaimByInvitee(ctx context.Context, inviteeWallet string) (*claim.Claim, error)
	ListClaims(ctx context.Context) ([]*claim.Claim, error)
	ListUnsyncedClaims(ctx context.Context) ([]*claim.Claim, error)
	MarkClaimSynced(ctx context.Context, inviteeWallet string, status claim.SyncStatus) error

	// Conversion methods
	AppendConversion(ctx context.Context, c *conversion.Conversion) error
	ListConversions(ctx context.Context) ([]*conversion.Conversion, error)

	// Core methods
	Ping(ctx context.Context) error
	Close() error
}
