package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
)

const (
	inviterAddr = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	inviteeAddr = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
)

func TestAllowlistRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedAllowlist(inviterAddr, 3)

	// Lookup is case-insensitive.
	e, err := s.GetAllowlistEntry(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetAllowlistEntry: %v", err)
	}
	if e.InvitesRemaining != 3 {
		t.Errorf("InvitesRemaining = %d, want 3", e.InvitesRemaining)
	}

	if err := s.UpdateInvitesRemaining(ctx, inviterAddr, 2); err != nil {
		t.Fatalf("UpdateInvitesRemaining: %v", err)
	}
	e, _ = s.GetAllowlistEntry(ctx, inviterAddr)
	if e.InvitesRemaining != 2 {
		t.Errorf("InvitesRemaining after update = %d, want 2", e.InvitesRemaining)
	}

	if _, err := s.GetAllowlistEntry(ctx, inviteeAddr); !errors.Is(err, invite.ErrNotFound) {
		t.Errorf("missing entry error = %v, want ErrNotFound", err)
	}
}

func TestInviteCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	c := &code.InviteCode{
		Code:          "K7mPq2Rs",
		InviterWallet: inviterAddr,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.AppendInviteCode(ctx, c); err != nil {
		t.Fatalf("AppendInviteCode: %v", err)
	}
	if err := s.AppendInviteCode(ctx, c); !errors.Is(err, invite.ErrDuplicateRow) {
		t.Errorf("duplicate append error = %v, want ErrDuplicateRow", err)
	}

	// Code lookup is case-sensitive exact match.
	if _, err := s.GetInviteCode(ctx, "k7mpq2rs"); !errors.Is(err, invite.ErrNotFound) {
		t.Errorf("lowercased lookup error = %v, want ErrNotFound", err)
	}

	usedAt := time.Now().UTC()
	if err := s.MarkInviteCodeUsed(ctx, "K7mPq2Rs", inviteeAddr, usedAt); err != nil {
		t.Fatalf("MarkInviteCodeUsed: %v", err)
	}
	got, err := s.GetInviteCode(ctx, "K7mPq2Rs")
	if err != nil {
		t.Fatalf("GetInviteCode: %v", err)
	}
	if !got.Used || got.InviteeWallet != inviteeAddr || got.UsedAt == nil {
		t.Errorf("code not marked used: %+v", got)
	}

	// The used flip is terminal.
	err = s.MarkInviteCodeUsed(ctx, "K7mPq2Rs", inviterAddr, time.Now())
	if !errors.Is(err, invite.ErrCodeAlreadyUsed) {
		t.Errorf("second mark error = %v, want ErrCodeAlreadyUsed", err)
	}
}

func TestClaimSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	cl := &claim.Claim{
		InviteeWallet: inviteeAddr,
		InviterWallet: inviterAddr,
		ClaimedAt:     time.Now().UTC(),
		Code:          "K7mPq2Rs",
	}
	if err := s.AppendClaim(ctx, cl); err != nil {
		t.Fatalf("AppendClaim: %v", err)
	}
	if err := s.AppendClaim(ctx, cl); !errors.Is(err, invite.ErrDuplicateRow) {
		t.Errorf("duplicate claim error = %v, want ErrDuplicateRow", err)
	}

	unsynced, err := s.ListUnsyncedClaims(ctx)
	if err != nil || len(unsynced) != 1 {
		t.Fatalf("ListUnsyncedClaims = %v, %v", unsynced, err)
	}

	// Failed rows stay in the retry scan.
	if err := s.MarkClaimSynced(ctx, inviteeAddr, claim.SyncFailed); err != nil {
		t.Fatalf("MarkClaimSynced failed: %v", err)
	}
	unsynced, _ = s.ListUnsyncedClaims(ctx)
	if len(unsynced) != 1 {
		t.Errorf("failed claim should remain unsynced, got %d rows", len(unsynced))
	}

	if err := s.MarkClaimSynced(ctx, inviteeAddr, claim.SyncSynced); err != nil {
		t.Fatalf("MarkClaimSynced synced: %v", err)
	}
	unsynced, _ = s.ListUnsyncedClaims(ctx)
	if len(unsynced) != 0 {
		t.Errorf("synced claim should leave the scan, got %d rows", len(unsynced))
	}
}

func TestCloseRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, invite.ErrStoreClosed) {
		t.Errorf("Ping after close = %v, want ErrStoreClosed", err)
	}
	if _, err := s.ListClaims(ctx); !errors.Is(err, invite.ErrStoreClosed) {
		t.Errorf("ListClaims after close = %v, want ErrStoreClosed", err)
	}
}
