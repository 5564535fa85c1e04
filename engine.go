package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/plugin"
	"github.com/davemagnier/youmio-invite/session"
	"github.com/davemagnier/youmio-invite/stats"
	"github.com/davemagnier/youmio-invite/store"
	"github.com/davemagnier/youmio-invite/wallet"
)

// Pusher forwards redeemed wallets to the external access-control service.
type Pusher interface {
	AddWallets(ctx context.Context, wallets []string) (added, failed []string, err error)
}

// Engine is the invite ledger. It owns all cross-row invariants the
// transactionless store cannot enforce, serializing conflicting writers per
// inviter wallet and per code.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	sessions *session.Authenticator
	pusher   Pusher
	logger   *slog.Logger

	// Keyed write serialization. Lock order is wallet before code.
	walletLocks keyedMutex
	codeLocks   keyedMutex

	// Background reconciliation
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	syncBatchSize int
	syncInterval  time.Duration
	batchDelay    time.Duration
	webhookSecret string
	sigMode       conversion.SignatureMode

	now func() time.Time
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		stopChan:      make(chan struct{}),
		syncBatchSize: 15,
		syncInterval:  0, // disabled unless configured
		batchDelay:    500 * time.Millisecond,
		sigMode:       conversion.SignatureEnforced,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSessions enables signature-gated issuance using a.
func WithSessions(a *session.Authenticator) Option {
	return func(e *Engine) {
		e.sessions = a
	}
}

// WithPusher sets the downstream allowlist service used by Reconcile.
func WithPusher(p Pusher) Option {
	return func(e *Engine) {
		e.pusher = p
	}
}

// WithSyncConfig configures reconciliation batching. An interval of zero
// disables the background worker; Reconcile can still be called directly.
func WithSyncConfig(batchSize int, interval, batchDelay time.Duration) Option {
	return func(e *Engine) {
		if batchSize > 0 {
			e.syncBatchSize = batchSize
		}
		e.syncInterval = interval
		if batchDelay >= 0 {
			e.batchDelay = batchDelay
		}
	}
}

// WithWebhookSecret configures payment webhook signature verification.
func WithWebhookSecret(secret string, mode conversion.SignatureMode) Option {
	return func(e *Engine) {
		e.webhookSecret = secret
		e.sigMode = mode
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Sessions returns the wallet authenticator, or nil when signature gating is
// disabled.
func (e *Engine) Sessions() *session.Authenticator {
	return e.sessions
}

// Start verifies store connectivity, initializes plugins, and starts the
// background reconcile worker when a pusher and interval are configured.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}

	e.plugins.EmitInit(ctx, e)

	if e.pusher != nil && e.syncInterval > 0 {
		e.wg.Add(1)
		go e.reconcileWorker(ctx)
	}

	e.logger.Info("invite engine started",
		"sync_batch_size", e.syncBatchSize,
		"sync_interval", e.syncInterval,
		"signature_mode", e.sigMode,
	)

	return nil
}

// Stop shuts down the Engine. Safe to call more than once; only the first
// call closes the store.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()

		ctx := context.Background()
		e.plugins.EmitShutdown(ctx)

		err = e.store.Close()
	})
	return err
}

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

// Issue generates a new invite code for inviterWallet, decrementing its
// remaining quota, and reports the quota left after the decrement. When
// sessions are enabled, sessionID must belong to a verified session for the
// same wallet.
func (e *Engine) Issue(ctx context.Context, inviterWallet, sessionID string) (*code.InviteCode, int, error) {
	if !wallet.IsValid(inviterWallet) {
		return nil, 0, &ValidationError{Field: "wallet", Message: "invalid wallet address"}
	}
	inviterWallet = wallet.Normalize(inviterWallet)

	if err := e.requireSession(inviterWallet, sessionID); err != nil {
		return nil, 0, err
	}

	unlock := e.walletLocks.lock(inviterWallet)
	defer unlock()

	entry, err := e.store.GetAllowlistEntry(ctx, inviterWallet)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrNotAllowlisted
		}
		return nil, 0, err
	}
	if entry.InvitesRemaining <= 0 {
		e.plugins.EmitQuotaExhausted(ctx, inviterWallet)
		return nil, 0, ErrQuotaExhausted
	}

	c, err := e.generateUnique(ctx, inviterWallet)
	if err != nil {
		return nil, 0, err
	}

	remaining := entry.InvitesRemaining - 1
	if err := e.store.AppendInviteCode(ctx, c); err != nil {
		return nil, 0, err
	}
	if err := e.store.UpdateInvitesRemaining(ctx, inviterWallet, remaining); err != nil {
		// The code row is already appended; the quota row is now stale.
		// Reconciliation cannot repair quota, so surface the error loudly.
		e.logger.Error("quota decrement failed after code append",
			"wallet", wallet.Mask(inviterWallet), "code", c.Code, "error", err)
		return nil, 0, err
	}

	e.plugins.EmitCodeIssued(ctx, c)
	e.logger.Info("invite code issued",
		"inviter", wallet.Mask(inviterWallet),
		"remaining", remaining,
	)
	return c, remaining, nil
}

// generateUnique draws codes until one misses the existing table. Collisions
// are vanishingly rare at 8 chars over a 55-symbol alphabet; the retry bound
// exists to fail fast if the store misbehaves.
func (e *Engine) generateUnique(ctx context.Context, inviterWallet string) (*code.InviteCode, error) {
	for attempt := 0; attempt < 5; attempt++ {
		value, err := code.Generate()
		if err != nil {
			return nil, err
		}
		_, err = e.store.GetInviteCode(ctx, value)
		if errors.Is(err, ErrNotFound) {
			return &code.InviteCode{
				Code:          value,
				InviterWallet: inviterWallet,
				CreatedAt:     e.now().UTC(),
			}, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("code generation: %w", ErrDuplicateRow)
}

// Codes lists the codes issued by inviterWallet, subject to the same session
// gate as Issue.
func (e *Engine) Codes(ctx context.Context, inviterWallet, sessionID string) ([]*code.InviteCode, error) {
	if !wallet.IsValid(inviterWallet) {
		return nil, &ValidationError{Field: "wallet", Message: "invalid wallet address"}
	}
	inviterWallet = wallet.Normalize(inviterWallet)

	if err := e.requireSession(inviterWallet, sessionID); err != nil {
		return nil, err
	}

	return e.store.ListInviteCodesByInviter(ctx, inviterWallet)
}

func (e *Engine) requireSession(walletAddr, sessionID string) error {
	if e.sessions == nil {
		return nil
	}
	if sessionID == "" {
		return ErrSessionRequired
	}
	got, ok := e.sessions.Wallet(sessionID)
	if !ok {
		return ErrSessionRequired
	}
	if !wallet.Equal(got, walletAddr) {
		return ErrSessionMismatch
	}
	return nil
}

// ──────────────────────────────────────────────────
// Lookup
// ──────────────────────────────────────────────────

// CodeStatus is the public answer to "is this code usable".
type CodeStatus struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	Inviter string `json:"inviter,omitempty"`
}

// Lookup failure reasons.
const (
	ReasonNotFound    = "not_found"
	ReasonAlreadyUsed = "already_used"
)

// Check reports whether codeValue is redeemable. The inviter is masked; this
// endpoint is unauthenticated.
func (e *Engine) Check(ctx context.Context, codeValue string) (*CodeStatus, error) {
	if !code.ValidShape(codeValue) {
		return nil, &ValidationError{Field: "code", Message: "invalid code format"}
	}

	c, err := e.store.GetInviteCode(ctx, codeValue)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &CodeStatus{Valid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}
	if c.Used {
		return &CodeStatus{Valid: false, Reason: ReasonAlreadyUsed}, nil
	}
	return &CodeStatus{Valid: true, Inviter: wallet.Mask(c.InviterWallet)}, nil
}

// InviterStatus summarizes one wallet's standing: allowlist membership,
// remaining quota, and issued-code tallies.
type InviterStatus struct {
	Wallet           string `json:"wallet"`
	Allowlisted      bool   `json:"allowlisted"`
	InvitesRemaining int    `json:"invites_remaining"`
	CodesIssued      int    `json:"codes_issued"`
	CodesUsed        int    `json:"codes_used"`
}

// Status reports walletAddr's allowlist standing and code tallies. A wallet
// missing from the allowlist is not an error.
func (e *Engine) Status(ctx context.Context, walletAddr string) (*InviterStatus, error) {
	if !wallet.IsValid(walletAddr) {
		return nil, &ValidationError{Field: "wallet", Message: "invalid wallet address"}
	}
	walletAddr = wallet.Normalize(walletAddr)

	st := &InviterStatus{Wallet: walletAddr}

	entry, err := e.store.GetAllowlistEntry(ctx, walletAddr)
	switch {
	case err == nil:
		st.Allowlisted = true
		st.InvitesRemaining = entry.InvitesRemaining
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	codes, err := e.store.ListInviteCodesByInviter(ctx, walletAddr)
	if err != nil {
		return nil, err
	}
	st.CodesIssued = len(codes)
	for _, c := range codes {
		if c.Used {
			st.CodesUsed++
		}
	}
	return st, nil
}

// ──────────────────────────────────────────────────
// Redemption
// ──────────────────────────────────────────────────

// Redeem consumes codeValue for inviteeWallet: the code flips to used, a
// claim row is appended, and the invitee becomes eligible for access sync.
// All guard checks run under the invitee-wallet and code locks so two
// concurrent redemptions of the same code cannot both pass.
func (e *Engine) Redeem(ctx context.Context, codeValue, inviteeWallet string) (*claim.Claim, error) {
	if !wallet.IsValid(inviteeWallet) {
		return nil, &ValidationError{Field: "wallet", Message: "invalid wallet address"}
	}
	if !code.ValidShape(codeValue) {
		return nil, &ValidationError{Field: "code", Message: "invalid code format"}
	}
	inviteeWallet = wallet.Normalize(inviteeWallet)

	unlockWallet := e.walletLocks.lock(inviteeWallet)
	defer unlockWallet()
	unlockCode := e.codeLocks.lock(codeValue)
	defer unlockCode()

	c, err := e.store.GetInviteCode(ctx, codeValue)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if c.Used {
		return nil, ErrCodeAlreadyUsed
	}
	if wallet.Equal(c.InviterWallet, inviteeWallet) {
		return nil, ErrSelfInvite
	}

	if _, err := e.store.GetAllowlistEntry(ctx, inviteeWallet); err == nil {
		return nil, ErrAlreadyAllowlisted
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if _, err := e.store.GetClaimByInvitee(ctx, inviteeWallet); err == nil {
		return nil, ErrAlreadyClaimed
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	usedAt := e.now().UTC()
	if err := e.store.MarkInviteCodeUsed(ctx, codeValue, inviteeWallet, usedAt); err != nil {
		return nil, err
	}

	cl := &claim.Claim{
		InviteeWallet: inviteeWallet,
		InviterWallet: wallet.Normalize(c.InviterWallet),
		ClaimedAt:     usedAt,
		Code:          codeValue,
	}
	if err := e.store.AppendClaim(ctx, cl); err != nil {
		// The code is already burned. Reconcile backfills the missing claim
		// row from the code table, so log and surface the error.
		e.logger.Error("claim append failed after code marked used",
			"code", codeValue, "invitee", wallet.Mask(inviteeWallet), "error", err)
		return nil, err
	}

	e.plugins.EmitCodeRedeemed(ctx, cl)
	e.logger.Info("invite code redeemed",
		"code", codeValue,
		"invitee", wallet.Mask(inviteeWallet),
		"inviter", wallet.Mask(cl.InviterWallet),
	)
	return cl, nil
}

// ──────────────────────────────────────────────────
// Conversion attribution
// ──────────────────────────────────────────────────

// Attribute ingests one payment webhook delivery. Signature failures reject
// the delivery; everything else resolves to a Result, recorded or skipped.
func (e *Engine) Attribute(ctx context.Context, payload []byte, sigHeader string) (*conversion.Result, error) {
	if e.sigMode == conversion.SignatureEnforced {
		if !conversion.VerifySignature(payload, sigHeader, e.webhookSecret) {
			return nil, ErrBadWebhookSignature
		}
	}

	ev, err := conversion.ParseEvent(payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Message: "malformed event"}
	}

	if !ev.Qualifies() {
		return &conversion.Result{SkipReason: conversion.SkipEventType}, nil
	}

	subscriber := ev.SubscriberWallet()
	if !wallet.IsValid(subscriber) {
		return &conversion.Result{SkipReason: conversion.SkipNoWallet}, nil
	}
	subscriber = wallet.Normalize(subscriber)

	cl, err := e.store.GetClaimByInvitee(ctx, subscriber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &conversion.Result{SkipReason: conversion.SkipNotInvited}, nil
		}
		return nil, err
	}

	tier := ev.TierOf()
	conv := &conversion.Conversion{
		SubscriberWallet: subscriber,
		Username:         ev.SubscriberUsername(),
		Email:            ev.SubscriberEmail(),
		Tier:             tier,
		Timestamp:        e.now().UTC(),
		Source:           ev.Type,
		InviterWallet:    cl.InviterWallet,
		StarsBonus:       conversion.StarBonus(tier),
		PayoutStatus:     conversion.PayoutPending,
	}
	if err := e.store.AppendConversion(ctx, conv); err != nil {
		return nil, err
	}

	e.plugins.EmitConversionRecorded(ctx, conv)
	e.logger.Info("conversion recorded",
		"subscriber", wallet.Mask(subscriber),
		"inviter", wallet.Mask(cl.InviterWallet),
		"tier", tier,
		"bonus", conv.StarsBonus,
	)
	return &conversion.Result{Recorded: true, Conversion: conv}, nil
}

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	Synced     int `json:"synced"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
	Backfilled int `json:"backfilled"`
}

// Reconcile pushes unsynced claims to the downstream access service in
// batches. Before pushing it backfills claim rows for codes that were marked
// used without a matching claim (a crashed redemption). The pass is
// idempotent: a second run with nothing pending reports zeros.
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileSummary, error) {
	if e.pusher == nil {
		return nil, fmt.Errorf("reconcile: no pusher configured: %w", ErrStoreNotReady)
	}

	summary := &ReconcileSummary{}

	backfilled, err := e.backfillClaims(ctx)
	if err != nil {
		return nil, err
	}
	summary.Backfilled = backfilled

	pending, err := e.store.ListUnsyncedClaims(ctx)
	if err != nil {
		return nil, err
	}
	summary.Total = len(pending)
	if len(pending) == 0 {
		return summary, nil
	}

	for start := 0; start < len(pending); start += e.syncBatchSize {
		end := start + e.syncBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		wallets := make([]string, len(batch))
		for i, cl := range batch {
			wallets[i] = cl.InviteeWallet
		}

		added, failed, err := e.pusher.AddWallets(ctx, wallets)
		if err != nil {
			// Whole-batch failure: mark every row failed and keep going, so a
			// later pass retries them.
			e.logger.Warn("allowlist sync batch failed", "size", len(batch), "error", err)
			for _, cl := range batch {
				if merr := e.store.MarkClaimSynced(ctx, cl.InviteeWallet, claim.SyncFailed); merr != nil {
					e.logger.Error("mark claim failed", "invitee", wallet.Mask(cl.InviteeWallet), "error", merr)
				}
			}
			summary.Failed += len(batch)
		} else {
			summary.Synced += len(added)
			summary.Failed += len(failed)
			for _, w := range added {
				if merr := e.store.MarkClaimSynced(ctx, w, claim.SyncSynced); merr != nil {
					e.logger.Error("mark claim synced", "invitee", wallet.Mask(w), "error", merr)
				}
			}
			for _, w := range failed {
				if merr := e.store.MarkClaimSynced(ctx, w, claim.SyncFailed); merr != nil {
					e.logger.Error("mark claim failed", "invitee", wallet.Mask(w), "error", merr)
				}
			}
		}

		if end < len(pending) && e.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	e.plugins.EmitClaimsSynced(ctx, summary.Synced, summary.Failed)
	e.logger.Info("reconcile pass complete",
		"synced", summary.Synced,
		"failed", summary.Failed,
		"total", summary.Total,
		"backfilled", summary.Backfilled,
	)
	return summary, nil
}

// backfillClaims appends claim rows for used codes that have none, repairing
// redemptions that crashed between the code flip and the claim append.
func (e *Engine) backfillClaims(ctx context.Context) (int, error) {
	codes, err := e.store.ListInviteCodes(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range codes {
		if !c.Used || c.InviteeWallet == "" {
			continue
		}
		_, err := e.store.GetClaimByInvitee(ctx, c.InviteeWallet)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return count, err
		}

		claimedAt := e.now().UTC()
		if c.UsedAt != nil {
			claimedAt = *c.UsedAt
		}
		cl := &claim.Claim{
			InviteeWallet: wallet.Normalize(c.InviteeWallet),
			InviterWallet: wallet.Normalize(c.InviterWallet),
			ClaimedAt:     claimedAt,
			Code:          c.Code,
		}
		if err := e.store.AppendClaim(ctx, cl); err != nil {
			if errors.Is(err, ErrDuplicateRow) {
				continue
			}
			return count, err
		}
		count++
		e.logger.Warn("backfilled missing claim row",
			"code", c.Code, "invitee", wallet.Mask(cl.InviteeWallet))
	}
	return count, nil
}

// reconcileWorker runs Reconcile on a fixed interval until Stop.
func (e *Engine) reconcileWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Reconcile(ctx); err != nil {
				e.logger.Error("scheduled reconcile failed", "error", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Reporting
// ──────────────────────────────────────────────────

// Stats aggregates the reporting snapshot across all tables.
func (e *Engine) Stats(ctx context.Context) (*stats.Stats, error) {
	entries, err := e.store.ListAllowlist(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := e.store.ListInviteCodes(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := e.store.ListClaims(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Aggregate(entries, codes, claims, e.now()), nil
}

// keyedMutex serializes writers per string key. Entries are removed when the
// last holder releases, so the map stays bounded by concurrency, not by key
// cardinality.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
