// Package stats computes read-only reporting aggregates over the ledger
// tables. Aggregation is pure: callers pass snapshot reads, and no
// cross-table consistency is implied beyond those snapshots.
package stats

import (
	"sort"
	"time"

	"github.com/davemagnier/youmio-invite/allowlist"
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/wallet"
)

// TopInviterLimit caps the top-inviter leaderboard.
const TopInviterLimit = 10

// RecentClaimLimit caps the recent-claims list.
const RecentClaimLimit = 20

// ClaimWindowDays is the length of the claims-per-day report window.
const ClaimWindowDays = 7

// Inviter is one leaderboard row.
type Inviter struct {
	Wallet         string `json:"wallet"`
	FullWallet     string `json:"full_wallet"`
	CodesGenerated int    `json:"codes_generated"`
}

// RecentClaim is one masked redemption for display.
type RecentClaim struct {
	Invitee   string    `json:"invitee"`
	Inviter   string    `json:"inviter"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Stats is the full report payload.
type Stats struct {
	TotalAllowlisted      int            `json:"total_allowlisted"`
	TotalInvitesAvailable int            `json:"total_invites_available"`
	TotalCodesGenerated   int            `json:"total_codes_generated"`
	TotalCodesClaimed     int            `json:"total_codes_claimed"`
	TotalCodesUnclaimed   int            `json:"total_codes_unclaimed"`
	ClaimRate             int            `json:"claim_rate"`
	TopInviters           []Inviter      `json:"top_inviters"`
	RecentClaims          []RecentClaim  `json:"recent_claims"`
	ClaimsPerDay          map[string]int `json:"claims_per_day"`
}

// Aggregate computes the report from snapshot reads of each table.
func Aggregate(entries []*allowlist.Entry, codes []*code.InviteCode, claims []*claim.Claim, now time.Time) *Stats {
	s := &Stats{
		TotalAllowlisted:    len(entries),
		TotalCodesGenerated: len(codes),
		ClaimsPerDay:        make(map[string]int, ClaimWindowDays),
	}

	for _, e := range entries {
		if e.InvitesRemaining > 0 {
			s.TotalInvitesAvailable += e.InvitesRemaining
		}
	}

	counts := make(map[string]int)
	for _, c := range codes {
		if c.Used {
			s.TotalCodesClaimed++
		}
		if c.InviterWallet != "" {
			counts[wallet.Normalize(c.InviterWallet)]++
		}
	}
	s.TotalCodesUnclaimed = s.TotalCodesGenerated - s.TotalCodesClaimed
	if s.TotalCodesGenerated > 0 {
		s.ClaimRate = int(float64(s.TotalCodesClaimed)/float64(s.TotalCodesGenerated)*100 + 0.5)
	}

	s.TopInviters = topInviters(counts)
	s.RecentClaims = recentClaims(claims)
	s.ClaimsPerDay = claimsPerDay(claims, now)
	return s
}

func topInviters(counts map[string]int) []Inviter {
	out := make([]Inviter, 0, len(counts))
	for w, n := range counts {
		out = append(out, Inviter{
			Wallet:         wallet.Mask(w),
			FullWallet:     w,
			CodesGenerated: n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CodesGenerated != out[j].CodesGenerated {
			return out[i].CodesGenerated > out[j].CodesGenerated
		}
		return out[i].FullWallet < out[j].FullWallet
	})
	if len(out) > TopInviterLimit {
		out = out[:TopInviterLimit]
	}
	return out
}

func recentClaims(claims []*claim.Claim) []RecentClaim {
	out := make([]RecentClaim, 0, RecentClaimLimit)
	for i := len(claims) - 1; i >= 0 && len(out) < RecentClaimLimit; i-- {
		c := claims[i]
		out = append(out, RecentClaim{
			Invitee:   wallet.Mask(c.InviteeWallet),
			Inviter:   wallet.Mask(c.InviterWallet),
			ClaimedAt: c.ClaimedAt,
		})
	}
	return out
}

func claimsPerDay(claims []*claim.Claim, now time.Time) map[string]int {
	buckets := make(map[string]int, ClaimWindowDays)
	for i := 0; i < ClaimWindowDays; i++ {
		day := now.UTC().AddDate(0, 0, -i).Format("2006-01-02")
		buckets[day] = 0
	}
	for _, c := range claims {
		day := c.ClaimedAt.UTC().Format("2006-01-02")
		if _, ok := buckets[day]; ok {
			buckets[day]++
		}
	}
	return buckets
}
