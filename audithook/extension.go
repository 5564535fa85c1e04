// Package audithook bridges engine lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/plugin"
	"github.com/davemagnier/youmio-invite/wallet"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnCodeIssued         = (*Extension)(nil)
	_ plugin.OnCodeRedeemed       = (*Extension)(nil)
	_ plugin.OnQuotaExhausted     = (*Extension)(nil)
	_ plugin.OnConversionRecorded = (*Extension)(nil)
	_ plugin.OnClaimsSynced       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no backend dependency — callers
// inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnCodeIssued implements plugin.OnCodeIssued.
func (e *Extension) OnCodeIssued(ctx context.Context, c *code.InviteCode) error {
	return e.record(ctx, ActionCodeIssued, SeverityInfo, OutcomeSuccess,
		ResourceCode, c.Code, CategoryInvite, nil,
		"inviter", wallet.Mask(c.InviterWallet),
	)
}

// OnCodeRedeemed implements plugin.OnCodeRedeemed.
func (e *Extension) OnCodeRedeemed(ctx context.Context, cl *claim.Claim) error {
	return e.record(ctx, ActionCodeRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceClaim, cl.Code, CategoryInvite, nil,
		"invitee", wallet.Mask(cl.InviteeWallet),
		"inviter", wallet.Mask(cl.InviterWallet),
	)
}

// OnQuotaExhausted implements plugin.OnQuotaExhausted.
func (e *Extension) OnQuotaExhausted(ctx context.Context, inviterWallet string) error {
	return e.record(ctx, ActionQuotaExhausted, SeverityWarning, OutcomeFailure,
		ResourceAllowlist, wallet.Mask(inviterWallet), CategoryAccess, nil,
		"inviter", wallet.Mask(inviterWallet),
	)
}

// OnConversionRecorded implements plugin.OnConversionRecorded.
func (e *Extension) OnConversionRecorded(ctx context.Context, c *conversion.Conversion) error {
	return e.record(ctx, ActionConversionRecorded, SeverityInfo, OutcomeSuccess,
		ResourceConversion, wallet.Mask(c.SubscriberWallet), CategoryPayment, nil,
		"subscriber", wallet.Mask(c.SubscriberWallet),
		"inviter", wallet.Mask(c.InviterWallet),
		"tier", string(c.Tier),
		"bonus", c.StarsBonus,
	)
}

// OnClaimsSynced implements plugin.OnClaimsSynced.
func (e *Extension) OnClaimsSynced(ctx context.Context, synced, failed int) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if failed > 0 {
		outcome = OutcomePartial
		severity = SeverityWarning
	}
	return e.record(ctx, ActionClaimsSynced, severity, outcome,
		ResourceClaim, "", CategoryAccess, nil,
		"synced", synced,
		"failed", failed,
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
