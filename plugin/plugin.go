// Package plugin provides an extensible hook system for the invite ledger.
// Plugins observe lifecycle events to extend functionality without touching
// engine internals.
package plugin

import (
	"context"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// OnInit is called when the engine starts. The engine is passed as
// interface{} to avoid an import cycle with the root package.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnCodeIssued is called after a new invite code is minted.
type OnCodeIssued interface {
	Plugin
	OnCodeIssued(ctx context.Context, c *code.InviteCode) error
}

// OnCodeRedeemed is called after a successful redemption.
type OnCodeRedeemed interface {
	Plugin
	OnCodeRedeemed(ctx context.Context, cl *claim.Claim) error
}

// OnQuotaExhausted is called when an issuance fails for lack of quota.
type OnQuotaExhausted interface {
	Plugin
	OnQuotaExhausted(ctx context.Context, inviterWallet string) error
}

// OnConversionRecorded is called after a subscription conversion is
// attributed and recorded.
type OnConversionRecorded interface {
	Plugin
	OnConversionRecorded(ctx context.Context, c *conversion.Conversion) error
}

// OnClaimsSynced is called after each reconciliation run.
type OnClaimsSynced interface {
	Plugin
	OnClaimsSynced(ctx context.Context, synced, failed int) error
}
