// Package memory provides an in-memory Store for tests and local
// development. Rows are held in append-order slices with linear-scan
// lookups, mirroring how the sheet-backed driver reads its tables.
package memory

import (
	"context"
	"sync"
	"time"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/allowlist"
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	ledgerstore "github.com/davemagnier/youmio-invite/store"
	"github.com/davemagnier/youmio-invite/wallet"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	entries     []*allowlist.Entry
	codes       []*code.InviteCode
	claims      []*claim.Claim
	conversions []*conversion.Conversion
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// SeedAllowlist inserts or replaces an allowlist entry. Seeding is an
// out-of-band operation in production; tests and dev mode use this directly.
func (s *Store) SeedAllowlist(walletAddr string, invitesRemaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if wallet.Equal(e.Wallet, walletAddr) {
			e.InvitesRemaining = invitesRemaining
			return
		}
	}
	s.entries = append(s.entries, &allowlist.Entry{
		Wallet:           walletAddr,
		InvitesRemaining: invitesRemaining,
	})
}

// Allowlist methods

func (s *Store) GetAllowlistEntry(_ context.Context, walletAddr string) (*allowlist.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	for _, e := range s.entries {
		if wallet.Equal(e.Wallet, walletAddr) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, invite.ErrNotFound
}

func (s *Store) ListAllowlist(_ context.Context) ([]*allowlist.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	out := make([]*allowlist.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) UpdateInvitesRemaining(_ context.Context, walletAddr string, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	for _, e := range s.entries {
		if wallet.Equal(e.Wallet, walletAddr) {
			e.InvitesRemaining = remaining
			return nil
		}
	}
	return invite.ErrNotFound
}

// Invite code methods

func (s *Store) AppendInviteCode(_ context.Context, c *code.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	for _, existing := range s.codes {
		if existing.Code == c.Code {
			return invite.ErrDuplicateRow
		}
	}
	cp := *c
	s.codes = append(s.codes, &cp)
	return nil
}

func (s *Store) GetInviteCode(_ context.Context, codeValue string) (*code.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	for _, c := range s.codes {
		if c.Code == codeValue {
			cp := *c
			return &cp, nil
		}
	}
	return nil, invite.ErrNotFound
}

func (s *Store) ListInviteCodes(_ context.Context) ([]*code.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	out := make([]*code.InviteCode, 0, len(s.codes))
	for _, c := range s.codes {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListInviteCodesByInviter(_ context.Context, inviterWallet string) ([]*code.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	var out []*code.InviteCode
	for _, c := range s.codes {
		if wallet.Equal(c.InviterWallet, inviterWallet) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) MarkInviteCodeUsed(_ context.Context, codeValue, inviteeWallet string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	for _, c := range s.codes {
		if c.Code != codeValue {
			continue
		}
		if c.Used {
			return invite.ErrCodeAlreadyUsed
		}
		c.Used = true
		c.InviteeWallet = inviteeWallet
		at := usedAt
		c.UsedAt = &at
		return nil
	}
	return invite.ErrNotFound
}

// Claim methods

func (s *Store) AppendClaim(_ context.Context, c *claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	for _, existing := range s.claims {
		if wallet.Equal(existing.InviteeWallet, c.InviteeWallet) {
			return invite.ErrDuplicateRow
		}
	}
	cp := *c
	s.claims = append(s.claims, &cp)
	return nil
}

func (s *Store) GetClaimByInvitee(_ context.Context, inviteeWallet string) (*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	for _, c := range s.claims {
		if wallet.Equal(c.InviteeWallet, inviteeWallet) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, invite.ErrNotFound
}

func (s *Store) ListClaims(_ context.Context) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	out := make([]*claim.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListUnsyncedClaims(_ context.Context) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	var out []*claim.Claim
	for _, c := range s.claims {
		if !c.Synced() {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) MarkClaimSynced(_ context.Context, inviteeWallet string, status claim.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	for _, c := range s.claims {
		if wallet.Equal(c.InviteeWallet, inviteeWallet) {
			c.SyncStatus = status
			return nil
		}
	}
	return invite.ErrNotFound
}

// Conversion methods

func (s *Store) AppendConversion(_ context.Context, c *conversion.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	cp := *c
	s.conversions = append(s.conversions, &cp)
	return nil
}

func (s *Store) ListConversions(_ context.Context) ([]*conversion.Conversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, invite.ErrStoreClosed
	}
	out := make([]*conversion.Conversion, 0, len(s.conversions))
	for _, c := range s.conversions {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// Core methods

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return invite.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
