// Package conversion handles payment webhook events and the
// subscription-conversion ledger they feed.
package conversion

import (
	"strings"
	"time"
)

// Tier is a subscription tier derived from the payment event.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Star bonus amounts credited to the inviter per converted subscription.
const (
	BonusStandard int64 = 40000
	BonusPro      int64 = 80000
)

// StarBonus returns the inviter bonus for a tier. Unknown tiers (metadata
// overrides are free-form) fall back to the standard amount.
func StarBonus(t Tier) int64 {
	if t == TierPro {
		return BonusPro
	}
	return BonusStandard
}

// PayoutStatus tracks whether the inviter bonus has been paid out.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// Conversion records one qualifying subscription attributed to an inviter.
// Rows are append-only.
type Conversion struct {
	SubscriberWallet string       `json:"subscriber_wallet"`
	Username         string       `json:"username"`
	Email            string       `json:"email"`
	Tier             Tier         `json:"tier"`
	Timestamp        time.Time    `json:"timestamp"`
	Source           string       `json:"source"`
	InviterWallet    string       `json:"inviter_wallet"`
	InviterUsername  string       `json:"inviter_username"`
	StarsBonus       int64        `json:"stars_bonus"`
	PayoutStatus     PayoutStatus `json:"payout_status"`
}

// Result is the outcome of ingesting one webhook event.
type Result struct {
	Recorded   bool        `json:"recorded"`
	SkipReason string      `json:"skip_reason,omitempty"`
	Conversion *Conversion `json:"conversion,omitempty"`
}

// Skip reasons surfaced in webhook responses.
const (
	SkipEventType  = "event_type"
	SkipNoWallet   = "no_wallet"
	SkipNotInvited = "not_invited"
)

// normalizeTier maps a free-form tier label onto a known tier.
func normalizeTier(label string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pro":
		return TierPro, true
	case "standard":
		return TierStandard, true
	default:
		return TierStandard, false
	}
}
