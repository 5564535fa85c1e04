package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/session"
	"github.com/davemagnier/youmio-invite/store/memory"
)

const (
	inviterAddr = "0x1111111111111111111111111111111111111111"
	inviteeAddr = "0x2222222222222222222222222222222222222222"
)

func newServer(t *testing.T, opts ...invite.Option) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	base := []invite.Option{
		invite.WithWebhookSecret("", conversion.SignatureDisabled),
	}
	e := invite.New(st, append(base, opts...)...)
	return NewServer(e, WithAdminPassword("hunter2"), WithSyncKey("synckey")), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestIssueAndClaimFlow(t *testing.T) {
	srv, st := newServer(t)
	st.SeedAllowlist(inviterAddr, 1)

	w := doJSON(t, srv, http.MethodPost, "/api/codes", map[string]string{"wallet": inviterAddr}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body = %s", w.Code, w.Body.String())
	}
	issued := decode(t, w)
	codeValue, _ := issued["code"].(string)
	if len(codeValue) != 8 {
		t.Fatalf("code = %q", codeValue)
	}
	if ok, _ := issued["success"].(bool); !ok {
		t.Errorf("issue body missing success flag: %s", w.Body.String())
	}
	remaining, present := issued["invites_remaining"].(float64)
	if !present {
		t.Fatalf("issue body missing invites_remaining: %s", w.Body.String())
	}
	if remaining != 0 {
		t.Errorf("invites_remaining = %v, want 0 after spending the only invite", remaining)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/check-code?code="+codeValue, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d", w.Code)
	}
	if valid, _ := decode(t, w)["valid"].(bool); !valid {
		t.Fatalf("check body = %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/api/claim", map[string]string{
		"code": codeValue, "wallet": inviteeAddr,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body = %s", w.Code, w.Body.String())
	}

	// Second claim of the same code is a terminal conflict.
	w = doJSON(t, srv, http.MethodPost, "/api/claim", map[string]string{
		"code": codeValue, "wallet": "0x3333333333333333333333333333333333333333",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reused code status = %d, want 400", w.Code)
	}
}

func TestIssueNotAllowlisted(t *testing.T) {
	srv, _ := newServer(t)
	w := doJSON(t, srv, http.MethodPost, "/api/codes", map[string]string{"wallet": inviterAddr}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckInvite(t *testing.T) {
	srv, st := newServer(t)
	st.SeedAllowlist(inviterAddr, 3)

	w := doJSON(t, srv, http.MethodGet, "/api/check-invite?wallet="+inviterAddr, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if allowlisted, _ := body["allowlisted"].(bool); !allowlisted {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestClaimRateLimit(t *testing.T) {
	srv, _ := newServer(t)

	header := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	var last int
	for i := 0; i <= ClaimLimit; i++ {
		w := doJSON(t, srv, http.MethodPost, "/api/claim", map[string]string{
			"code": "AAAAAAAA", "wallet": inviteeAddr,
		}, header)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("request %d status = %d, want 429", ClaimLimit+1, last)
	}

	// A different client is unaffected.
	w := doJSON(t, srv, http.MethodPost, "/api/claim", map[string]string{
		"code": "AAAAAAAA", "wallet": inviteeAddr,
	}, map[string]string{"X-Forwarded-For": "203.0.113.10"})
	if w.Code == http.StatusTooManyRequests {
		t.Error("rate limit leaked across clients")
	}
}

func TestWalletVerificationFlow(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := session.PublicKeyAddress(key.PubKey().SerializeUncompressed())

	auth := session.NewAuthenticator(session.WithNonceRequired(true))
	srv, st := newServer(t, invite.WithSessions(auth))
	st.SeedAllowlist(addr, 1)

	w := doJSON(t, srv, http.MethodGet, "/api/challenge?wallet="+addr, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("challenge status = %d, body = %s", w.Code, w.Body.String())
	}
	message, _ := decode(t, w)["message"].(string)
	if message == "" {
		t.Fatal("empty challenge message")
	}

	w = doJSON(t, srv, http.MethodPost, "/api/verify-wallet", map[string]string{
		"wallet":    addr,
		"message":   message,
		"signature": signPersonal(key, message),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body = %s", w.Code, w.Body.String())
	}
	verifyBody := decode(t, w)
	if verified, _ := verifyBody["verified"].(bool); !verified {
		t.Errorf("verify body missing verified flag: %s", w.Body.String())
	}
	sessionID, _ := verifyBody["session_id"].(string)
	if sessionID == "" {
		t.Fatal("empty session id")
	}

	// Issuance without the session is refused, with it succeeds.
	w = doJSON(t, srv, http.MethodPost, "/api/codes", map[string]string{"wallet": addr}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("sessionless issue status = %d, want 401", w.Code)
	}
	w = doJSON(t, srv, http.MethodPost, "/api/codes", map[string]string{
		"wallet": addr, "session_id": sessionID,
	}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("issue status = %d, body = %s", w.Code, w.Body.String())
	}
}

func signPersonal(key *secp256k1.PrivateKey, message string) string {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefixed))
	compact := ecdsa.SignCompact(key, h.Sum(nil), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}

func TestPaymentWebhookAlwaysAcks(t *testing.T) {
	srv, _ := newServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/webhooks/payment",
		map[string]any{"type": "invoice.paid", "data": map[string]any{"object": map[string]any{}}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if recorded, _ := body["recorded"].(bool); recorded {
		t.Errorf("ignored event recorded: %s", w.Body.String())
	}
	if body["skip_reason"] != conversion.SkipEventType {
		t.Errorf("skip_reason = %v", body["skip_reason"])
	}
}

func TestSyncKeyGate(t *testing.T) {
	pusherCalled := false
	srv, _ := newServer(t, invite.WithPusher(pusherFunc(func() { pusherCalled = true })))

	w := doJSON(t, srv, http.MethodPost, "/api/sync", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("keyless sync status = %d, want 401", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/sync", nil, map[string]string{"X-Sync-Key": "synckey"})
	if w.Code != http.StatusOK {
		t.Errorf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	if success, _ := decode(t, w)["success"].(bool); !success {
		t.Errorf("sync body = %s", w.Body.String())
	}
	_ = pusherCalled // nothing pending, pusher may never be invoked
}

type pusherFunc func()

func (f pusherFunc) AddWallets(_ context.Context, wallets []string) ([]string, []string, error) {
	f()
	return wallets, nil, nil
}

func TestAdminStats(t *testing.T) {
	srv, st := newServer(t)
	st.SeedAllowlist(inviterAddr, 2)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/stats", map[string]string{"password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/admin/stats", map[string]string{"password": "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if n, _ := body["total_allowlisted"].(float64); n != 1 {
		t.Errorf("total_allowlisted = %v", body["total_allowlisted"])
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/check-code", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
