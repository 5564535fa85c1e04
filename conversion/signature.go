package conversion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureMode controls webhook signature enforcement. The mode is explicit
// configuration: there is no implicit fail-open path when a secret is simply
// absent.
type SignatureMode string

const (
	// SignatureEnforced requires a valid signature header on every event.
	SignatureEnforced SignatureMode = "enforced"
	// SignatureDisabled skips verification entirely. Test environments only.
	SignatureDisabled SignatureMode = "disabled"
)

// ParseSignatureMode validates a configured mode label.
func ParseSignatureMode(label string) (SignatureMode, error) {
	switch SignatureMode(strings.ToLower(strings.TrimSpace(label))) {
	case SignatureEnforced:
		return SignatureEnforced, nil
	case SignatureDisabled:
		return SignatureDisabled, nil
	default:
		return "", fmt.Errorf("conversion: unknown signature mode %q", label)
	}
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against the HMAC-SHA256
// of "<t>.<payload>" under secret.
func VerifySignature(payload []byte, header, secret string) bool {
	var timestamp, signature string
	for _, elem := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(elem, "t="):
			timestamp = elem[len("t="):]
		case strings.HasPrefix(elem, "v1="):
			signature = elem[len("v1="):]
		}
	}
	if timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
