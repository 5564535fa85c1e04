package session

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// signedMessagePrefix is the EIP-191 personal-message prefix. Wallets apply
// it before signing, so recovery must hash the prefixed message.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n"

// RecoverAddress recovers the signing wallet address from a personal-message
// signature (65 bytes: r || s || v).
func RecoverAddress(message string, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", ErrBadSignature
	}

	v := signature[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", ErrBadSignature
	}

	// RecoverCompact wants the recovery code first.
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], signature[:64])

	digest := personalDigest(message)
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", ErrBadSignature
	}

	return PublicKeyAddress(pub.SerializeUncompressed()), nil
}

// PublicKeyAddress derives the 0x-prefixed address from an uncompressed
// secp256k1 public key (last 20 bytes of the Keccak-256 of the key material).
func PublicKeyAddress(uncompressed []byte) string {
	h := keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(h[12:])
}

// DecodeSignature parses the hex signature string supplied by the client.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrBadSignature
	}
	return raw, nil
}

func personalDigest(message string) []byte {
	return keccak256([]byte(fmt.Sprintf("%s%d%s", signedMessagePrefix, len(message), message)))
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
