package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// signer holds a throwaway key pair for exercising the verification path.
type signer struct {
	key  *secp256k1.PrivateKey
	addr string
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &signer{
		key:  key,
		addr: PublicKeyAddress(key.PubKey().SerializeUncompressed()),
	}
}

// sign produces an r||s||v personal-message signature as a wallet would.
func (s *signer) sign(message string) string {
	compact := ecdsa.SignCompact(s.key, personalDigest(message), false)
	ethSig := make([]byte, 65)
	copy(ethSig, compact[1:])
	ethSig[64] = compact[0]
	return "0x" + hex.EncodeToString(ethSig)
}

func (s *signer) message() string {
	return fmt.Sprintf("Verify wallet ownership for invite access\n\nWallet: %s", s.addr)
}

func TestVerifyAndLookup(t *testing.T) {
	s := newSigner(t)
	a := NewAuthenticator()

	msg := s.message()
	if err := a.Verify(s.addr, msg, s.sign(msg), "sess-1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	got, ok := a.Wallet("sess-1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if got != s.addr {
		t.Errorf("session wallet = %q, want %q", got, s.addr)
	}
	if _, ok := a.Wallet("sess-unknown"); ok {
		t.Error("unknown session should not resolve")
	}
}

func TestVerifyRejections(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	a := NewAuthenticator()

	msg := s.message()

	tests := []struct {
		name      string
		wallet    string
		message   string
		signature string
		want      error
	}{
		{"wrong wallet claimed", other.addr, msg, s.sign(msg), ErrMismatch},
		{"message missing fragments", s.addr, "hello world", s.sign("hello world"), ErrBadMessage},
		{"garbage signature", s.addr, msg, "0xzznotsig", ErrBadSignature},
		{"truncated signature", s.addr, msg, "0xdeadbeef", ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Verify(tt.wallet, tt.message, tt.signature, "sess")
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	s := newSigner(t)
	now := time.Now()
	clock := &now
	a := NewAuthenticator(
		WithTTL(10*time.Minute),
		WithClock(func() time.Time { return *clock }),
	)

	msg := s.message()
	if err := a.Verify(s.addr, msg, s.sign(msg), "sess-1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	later := now.Add(11 * time.Minute)
	clock = &later
	if _, ok := a.Wallet("sess-1"); ok {
		t.Error("session should have expired")
	}
}

func TestNonceFlow(t *testing.T) {
	s := newSigner(t)
	a := NewAuthenticator(WithNonceRequired(true))

	msg, err := a.Challenge(s.addr)
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	if err := a.Verify(s.addr, msg, s.sign(msg), "sess-1"); err != nil {
		t.Fatalf("Verify with challenge: %v", err)
	}

	// Nonce is single-use: replaying the same signed message must fail.
	err = a.Verify(s.addr, msg, s.sign(msg), "sess-2")
	if !errors.Is(err, ErrBadNonce) {
		t.Errorf("replay error = %v, want ErrBadNonce", err)
	}

	// A message without any nonce line fails when nonces are required.
	plain := s.message()
	err = a.Verify(s.addr, plain, s.sign(plain), "sess-3")
	if !errors.Is(err, ErrBadNonce) {
		t.Errorf("no-nonce error = %v, want ErrBadNonce", err)
	}
}

func TestChallengeRejectsBadWallet(t *testing.T) {
	a := NewAuthenticator()
	if _, err := a.Challenge("not-a-wallet"); !errors.Is(err, ErrBadMessage) {
		t.Errorf("Challenge error = %v, want ErrBadMessage", err)
	}
}

func TestRecoverAddressRoundTrip(t *testing.T) {
	s := newSigner(t)
	msg := "arbitrary payload referencing nothing"
	raw, err := DecodeSignature(s.sign(msg))
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	recovered, err := RecoverAddress(msg, raw)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if recovered != s.addr {
		t.Errorf("recovered %q, want %q", recovered, s.addr)
	}
}
