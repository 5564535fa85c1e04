package privy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAddWallets(t *testing.T) {
	var gotPath, gotAuthUser, gotAppHeader string
	var gotEntries []entry

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		gotAppHeader = r.Header.Get("privy-app-id")
		body, _ := io.ReadAll(r.Body)
		var e entry
		_ = json.Unmarshal(body, &e)
		gotEntries = append(gotEntries, e)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("app123", "secret", WithBaseURL(srv.URL))
	added, failed, err := c.AddWallets(context.Background(), []string{"0xaaa", "0xbbb"})
	if err != nil {
		t.Fatalf("AddWallets: %v", err)
	}
	if len(added) != 2 || len(failed) != 0 {
		t.Fatalf("added = %v, failed = %v", added, failed)
	}

	if gotPath != "/api/v1/apps/app123/allowlist" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuthUser != "app123" {
		t.Errorf("basic auth user = %q", gotAuthUser)
	}
	if gotAppHeader != "app123" {
		t.Errorf("privy-app-id header = %q", gotAppHeader)
	}
	if len(gotEntries) != 2 || gotEntries[0].Type != "wallet" || gotEntries[0].Value != "0xaaa" {
		t.Errorf("entries = %+v", gotEntries)
	}
}

func TestAddWalletsAlreadyExistsIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"wallet already exists on allowlist"}`))
	}))
	defer srv.Close()

	c := NewClient("app123", "secret", WithBaseURL(srv.URL))
	added, failed, err := c.AddWallets(context.Background(), []string{"0xaaa"})
	if err != nil {
		t.Fatalf("AddWallets: %v", err)
	}
	if len(added) != 1 || len(failed) != 0 {
		t.Errorf("already-exists should count as added: added = %v, failed = %v", added, failed)
	}
}

func TestAddWalletsPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var e entry
		_ = json.Unmarshal(body, &e)
		if e.Value == "0xbad" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("upstream broke"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("app123", "secret", WithBaseURL(srv.URL))
	added, failed, err := c.AddWallets(context.Background(), []string{"0xaaa", "0xbad", "0xccc"})
	if err != nil {
		t.Fatalf("AddWallets: %v", err)
	}
	if len(added) != 2 {
		t.Errorf("added = %v, want 2 wallets", added)
	}
	if len(failed) != 1 || failed[0] != "0xbad" {
		t.Errorf("failed = %v, want [0xbad]", failed)
	}
}

func TestAddWalletsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("app123", "secret", WithBaseURL("http://unreachable.invalid"))
	_, _, err := c.AddWallets(ctx, []string{"0xaaa"})
	if err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestAddWalletsEmptyBatch(t *testing.T) {
	c := NewClient("app123", "secret", WithBaseURL("http://unreachable.invalid"))
	added, failed, err := c.AddWallets(context.Background(), nil)
	if err != nil || added != nil || failed != nil {
		t.Errorf("empty batch should be a no-op, got %v %v %v", added, failed, err)
	}
}
