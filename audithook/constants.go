package audithook

// Action constants for audit events.
const (
	// Code actions
	ActionCodeIssued   = "code.issued"
	ActionCodeRedeemed = "code.redeemed"

	// Quota actions
	ActionQuotaExhausted = "quota.exhausted"

	// Conversion actions
	ActionConversionRecorded = "conversion.recorded"

	// Sync actions
	ActionClaimsSynced = "claims.synced"
)

// Resource constants for audit events.
const (
	ResourceCode       = "code"
	ResourceClaim      = "claim"
	ResourceAllowlist  = "allowlist"
	ResourceConversion = "conversion"
)

// Category constants for audit events.
const (
	CategoryInvite  = "invite"
	CategoryAccess  = "access"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
