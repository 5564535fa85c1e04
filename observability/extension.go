// Package observability provides a metrics extension that records engine
// lifecycle event counts through a caller-supplied MetricFactory.
package observability

import (
	"context"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnCodeIssued         = (*MetricsExtension)(nil)
	_ plugin.OnCodeRedeemed       = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExhausted     = (*MetricsExtension)(nil)
	_ plugin.OnConversionRecorded = (*MetricsExtension)(nil)
	_ plugin.OnClaimsSynced       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics. Defined locally so the package works with
// any metrics backend the host application already carries.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track invite metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Code metrics
	CodesIssued   Counter
	CodesRedeemed Counter

	// Quota metrics
	QuotaExhausted Counter

	// Conversion metrics
	ConversionsRecorded Counter
	ConversionBonus     Histogram

	// Sync metrics
	ClaimsSynced     Counter
	ClaimsSyncFailed Counter
	SyncBatchSize    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		CodesIssued:   factory.Counter("invite.code.issued"),
		CodesRedeemed: factory.Counter("invite.code.redeemed"),

		QuotaExhausted: factory.Counter("invite.quota.exhausted"),

		ConversionsRecorded: factory.Counter("invite.conversion.recorded"),
		ConversionBonus:     factory.Histogram("invite.conversion.bonus"),

		ClaimsSynced:     factory.Counter("invite.claims.synced"),
		ClaimsSyncFailed: factory.Counter("invite.claims.sync.failed"),
		SyncBatchSize:    factory.Histogram("invite.claims.sync.batch_size"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnCodeIssued implements plugin.OnCodeIssued.
func (m *MetricsExtension) OnCodeIssued(_ context.Context, _ *code.InviteCode) error {
	m.CodesIssued.Inc()
	return nil
}

// OnCodeRedeemed implements plugin.OnCodeRedeemed.
func (m *MetricsExtension) OnCodeRedeemed(_ context.Context, _ *claim.Claim) error {
	m.CodesRedeemed.Inc()
	return nil
}

// OnQuotaExhausted implements plugin.OnQuotaExhausted.
func (m *MetricsExtension) OnQuotaExhausted(_ context.Context, _ string) error {
	m.QuotaExhausted.Inc()
	return nil
}

// OnConversionRecorded implements plugin.OnConversionRecorded.
func (m *MetricsExtension) OnConversionRecorded(_ context.Context, c *conversion.Conversion) error {
	m.ConversionsRecorded.Inc()
	m.ConversionBonus.Observe(float64(c.StarsBonus))
	return nil
}

// OnClaimsSynced implements plugin.OnClaimsSynced.
func (m *MetricsExtension) OnClaimsSynced(_ context.Context, synced, failed int) error {
	m.ClaimsSynced.Add(float64(synced))
	m.ClaimsSyncFailed.Add(float64(failed))
	m.SyncBatchSize.Observe(float64(synced + failed))
	return nil
}
