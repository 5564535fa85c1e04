// Package session verifies wallet-ownership signature proofs and issues
// short-lived verified sessions consumed by code issuance.
//
// Session and nonce state is process-local. In a multi-instance deployment
// verification and issuance must land on the same instance; a shared backing
// store is the documented upgrade path.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davemagnier/youmio-invite/wallet"
)

// Verification failure reasons.
var (
	ErrBadSignature = errors.New("session: malformed or unrecoverable signature")
	ErrMismatch     = errors.New("session: signature does not match wallet")
	ErrBadMessage   = errors.New("session: message does not reference wallet")
	ErrBadNonce     = errors.New("session: unknown, expired, or reused nonce")
)

// DefaultTTL is how long a verified session stays valid.
const DefaultTTL = 10 * time.Minute

// DefaultNonceTTL bounds how long an issued challenge can sit unsigned.
const DefaultNonceTTL = 5 * time.Minute

const noncePrefix = "Nonce: "

// Session is a verified wallet bound to a client-supplied session ID.
type Session struct {
	Wallet    string
	ExpiresAt time.Time
}

type nonceRecord struct {
	wallet    string
	expiresAt time.Time
}

// Authenticator verifies signature proofs and tracks verified sessions.
type Authenticator struct {
	mu       sync.Mutex
	sessions map[string]Session
	nonces   map[string]nonceRecord

	ttl          time.Duration
	nonceTTL     time.Duration
	requireNonce bool
	now          func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTTL sets the verified-session lifetime.
func WithTTL(d time.Duration) Option {
	return func(a *Authenticator) { a.ttl = d }
}

// WithNonceRequired makes Verify reject messages that do not carry an
// outstanding server-issued nonce.
func WithNonceRequired(required bool) Option {
	return func(a *Authenticator) { a.requireNonce = required }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		sessions: make(map[string]Session),
		nonces:   make(map[string]nonceRecord),
		ttl:      DefaultTTL,
		nonceTTL: DefaultNonceTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Challenge issues a one-time nonce bound to walletAddr and returns the
// message the wallet should sign. The message embeds the full address, so the
// fragment check in Verify passes for any challenge we issued.
func (a *Authenticator) Challenge(walletAddr string) (string, error) {
	if !wallet.IsValid(walletAddr) {
		return "", ErrBadMessage
	}

	nonce := uuid.NewString()

	a.mu.Lock()
	a.nonces[nonce] = nonceRecord{
		wallet:    wallet.Normalize(walletAddr),
		expiresAt: a.now().Add(a.nonceTTL),
	}
	a.mu.Unlock()

	return fmt.Sprintf(
		"Verify wallet ownership for invite access\n\nWallet: %s\n%s%s",
		walletAddr, noncePrefix, nonce,
	), nil
}

// Verify checks that signature proves ownership of walletAddr over message
// and, on success, records a verified session under sessionID.
func (a *Authenticator) Verify(walletAddr, message, signature, sessionID string) error {
	raw, err := DecodeSignature(signature)
	if err != nil {
		return err
	}

	recovered, err := RecoverAddress(message, raw)
	if err != nil {
		return err
	}
	if !wallet.Equal(recovered, walletAddr) {
		return ErrMismatch
	}

	if !wallet.FragmentsIn(message, walletAddr) {
		return ErrBadMessage
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.requireNonce {
		if err := a.consumeNonceLocked(message, walletAddr, now); err != nil {
			return err
		}
	}

	a.sessions[sessionID] = Session{
		Wallet:    wallet.Normalize(walletAddr),
		ExpiresAt: now.Add(a.ttl),
	}
	a.sweepLocked(now)
	return nil
}

// Wallet returns the verified wallet for sessionID, if the session exists and
// has not expired. Expired sessions are removed lazily.
func (a *Authenticator) Wallet(sessionID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return "", false
	}
	if a.now().After(s.ExpiresAt) {
		delete(a.sessions, sessionID)
		return "", false
	}
	return s.Wallet, true
}

// TTL returns the configured session lifetime.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// consumeNonceLocked extracts the nonce line from message and consumes the
// matching outstanding nonce. Nonces are single-use.
func (a *Authenticator) consumeNonceLocked(message, walletAddr string, now time.Time) error {
	var nonce string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, noncePrefix) {
			nonce = strings.TrimSpace(line[len(noncePrefix):])
			break
		}
	}
	if nonce == "" {
		return ErrBadNonce
	}

	rec, ok := a.nonces[nonce]
	if !ok {
		return ErrBadNonce
	}
	delete(a.nonces, nonce)

	if now.After(rec.expiresAt) || rec.wallet != wallet.Normalize(walletAddr) {
		return ErrBadNonce
	}
	return nil
}

func (a *Authenticator) sweepLocked(now time.Time) {
	for id, s := range a.sessions {
		if now.After(s.ExpiresAt) {
			delete(a.sessions, id)
		}
	}
	for n, rec := range a.nonces {
		if now.After(rec.expiresAt) {
			delete(a.nonces, n)
		}
	}
}
