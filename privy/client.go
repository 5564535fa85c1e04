// Package privy is a minimal client for the Privy identity allowlist API,
// covering only the batch wallet upsert used by reconciliation.
package privy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the production Privy API host.
const DefaultBaseURL = "https://auth.privy.io"

const requestTimeout = 30 * time.Second

// entry is one allowlist upsert item.
type entry struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Client calls the Privy allowlist API with app-credential basic auth.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a Privy API client.
func NewClient(appID, appSecret string, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddWallets upserts a batch of wallet addresses into the app allowlist,
// one request per wallet, and reports which addresses landed and which did
// not. A response indicating the wallet is already allowlisted counts as
// success: the upsert is idempotent and reconciliation retries freely. The
// returned error is non-nil only when the batch could not proceed at all.
func (c *Client) AddWallets(ctx context.Context, wallets []string) (added, failed []string, err error) {
	for _, w := range wallets {
		if ctx.Err() != nil {
			return added, failed, ctx.Err()
		}
		if aerr := c.addWallet(ctx, w); aerr != nil {
			failed = append(failed, w)
			continue
		}
		added = append(added, w)
	}
	return added, failed, nil
}

func (c *Client) addWallet(ctx context.Context, walletAddr string) error {
	body, err := json.Marshal(entry{Type: "wallet", Value: walletAddr})
	if err != nil {
		return fmt.Errorf("privy: encode entry: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/apps/%s/allowlist", c.baseURL, c.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("privy: build request: %w", err)
	}
	req.SetBasicAuth(c.appID, c.appSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("privy-app-id", c.appID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("privy: allowlist request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if alreadyExists(resp.StatusCode, payload) {
		return nil
	}
	return fmt.Errorf("privy: allowlist upsert failed: HTTP %d: %s", resp.StatusCode, payload)
}

// alreadyExists detects the conflict response for wallets that are already on
// the allowlist.
func alreadyExists(status int, body []byte) bool {
	if status != http.StatusConflict && status != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(string(body)), "already")
}
