// Package invite provides a referral ledger and redemption engine for
// wallet-gated access programs.
//
// The engine is designed as a library, not a service. Import it directly into
// your Go application, or run the bundled HTTP server in cmd/invited. It
// provides:
//
//   - Quota-bound invite code issuance with collision-free generation
//   - Single-use code redemption with self-invite and double-claim guards
//   - Wallet-signature session authentication (EIP-191 personal messages)
//   - Payment webhook ingestion with conversion attribution to inviters
//   - Batched reconciliation of redeemed wallets into an external allowlist
//   - Aggregate program statistics (leaderboards, claim rates, daily series)
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    invite "github.com/davemagnier/youmio-invite"
//	    "github.com/davemagnier/youmio-invite/store/sheets"
//	)
//
//	st, err := sheets.New(ctx, spreadsheetID, credsJSON)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e := invite.New(st,
//	    invite.WithPusher(privyClient),
//	    invite.WithWebhookSecret(secret, conversion.SignatureEnforced),
//	)
//
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// The allowlist grants each member a finite invite quota. Issuing a code
// decrements the quota and appends an unused code row:
//
//	c, remaining, err := e.Issue(ctx, inviterWallet, sessionID)
//
// Redeeming consumes the code exactly once and records a claim:
//
//	cl, err := e.Redeem(ctx, codeValue, inviteeWallet)
//
// Claims propagate to the external access service asynchronously:
//
//	summary, err := e.Reconcile(ctx)
//
// # Consistency Model
//
// The backing store is a spreadsheet-style service with no transactions and
// no compare-and-swap. The engine serializes conflicting writers per wallet
// and per code, and Reconcile repairs the one multi-write sequence that can
// be torn by a crash (a code marked used without its claim row). Every write
// is designed so that a retry converges rather than duplicates.
package invite
