package code

import (
	"context"
	"time"
)

// Store is the invite-code slice of the unified store interface.
type Store interface {
	AppendInviteCode(ctx context.Context, c *InviteCode) error
	GetInviteCode(ctx context.Context, codeValue string) (*InviteCode, error)
	ListInviteCodes(ctx context.Context) ([]*InviteCode, error)
	ListInviteCodesByInviter(ctx context.Context, inviterWallet string) ([]*InviteCode, error)
	MarkInviteCodeUsed(ctx context.Context, codeValue, inviteeWallet string, usedAt time.Time) error
}
