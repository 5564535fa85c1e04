package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
)

// hookTimeout caps how long a single plugin callback may run.
const hookTimeout = 5 * time.Second

// Registry manages registered plugins and dispatches lifecycle events.
// Plugin interfaces are cached at registration time so dispatch does not
// type-assert per event.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	onInit               []OnInit
	onShutdown           []OnShutdown
	onCodeIssued         []OnCodeIssued
	onCodeRedeemed       []OnCodeRedeemed
	onQuotaExhausted     []OnQuotaExhausted
	onConversionRecorded []OnConversionRecorded
	onClaimsSynced       []OnClaimsSynced
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCodeIssued); ok {
		r.onCodeIssued = append(r.onCodeIssued, v)
	}
	if v, ok := p.(OnCodeRedeemed); ok {
		r.onCodeRedeemed = append(r.onCodeRedeemed, v)
	}
	if v, ok := p.(OnQuotaExhausted); ok {
		r.onQuotaExhausted = append(r.onQuotaExhausted, v)
	}
	if v, ok := p.(OnConversionRecorded); ok {
		r.onConversionRecorded = append(r.onConversionRecorded, v)
	}
	if v, ok := p.(OnClaimsSynced); ok {
		r.onClaimsSynced = append(r.onClaimsSynced, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func(ctx context.Context) error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func(ctx context.Context) error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitCodeIssued emits a code issued event.
func (r *Registry) EmitCodeIssued(ctx context.Context, c *code.InviteCode) {
	r.mu.RLock()
	plugins := r.onCodeIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCodeIssued", func(ctx context.Context) error {
			return p.OnCodeIssued(ctx, c)
		})
	}
}

// EmitCodeRedeemed emits a code redeemed event.
func (r *Registry) EmitCodeRedeemed(ctx context.Context, cl *claim.Claim) {
	r.mu.RLock()
	plugins := r.onCodeRedeemed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCodeRedeemed", func(ctx context.Context) error {
			return p.OnCodeRedeemed(ctx, cl)
		})
	}
}

// EmitQuotaExhausted emits a quota exhausted event.
func (r *Registry) EmitQuotaExhausted(ctx context.Context, inviterWallet string) {
	r.mu.RLock()
	plugins := r.onQuotaExhausted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnQuotaExhausted", func(ctx context.Context) error {
			return p.OnQuotaExhausted(ctx, inviterWallet)
		})
	}
}

// EmitConversionRecorded emits a conversion recorded event.
func (r *Registry) EmitConversionRecorded(ctx context.Context, c *conversion.Conversion) {
	r.mu.RLock()
	plugins := r.onConversionRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnConversionRecorded", func(ctx context.Context) error {
			return p.OnConversionRecorded(ctx, c)
		})
	}
}

// EmitClaimsSynced emits a reconciliation summary event.
func (r *Registry) EmitClaimsSynced(ctx context.Context, synced, failed int) {
	r.mu.RLock()
	plugins := r.onClaimsSynced
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnClaimsSynced", func(ctx context.Context) error {
			return p.OnClaimsSynced(ctx, synced, failed)
		})
	}
}

// call runs a hook with a bounded timeout and logs failures. Hook errors
// never propagate into engine operations.
func (r *Registry) call(ctx context.Context, name, hook string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", name,
			"hook", hook,
			"error", err,
		)
	}
}
