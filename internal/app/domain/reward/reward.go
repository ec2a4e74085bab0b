// Package reward defines redeemable rewards and their redemption records.
package reward

import "time"

// Reward is something points can be spent on.
type Reward struct {
	ID       string
	FamilyID string
	Title    string
	Category string
	// PointCost is the price of a single redemption.
	PointCost int64
	// ValidityDays bounds how long a redemption stays usable; zero means no
	// expiry.
	ValidityDays int
	// MaxRedemptionsPerWeek caps redemptions per account in any trailing
	// 7-day window; zero means unlimited.
	MaxRedemptionsPerWeek int
	TotalRedemptions      int64
	Active                bool
	// ExpiresAt retires the reward itself; zero means never.
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the reward itself is past its retirement instant.
func (r Reward) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Redemption records one spend of points on a reward. Snapshot preserves the
// reward as it was priced at redemption time; later edits to the catalog do
// not rewrite history.
type Redemption struct {
	ID         string
	RewardID   string
	Snapshot   Reward
	RedeemedBy string
	RedeemedAt time.Time
	// ExpiresAt is computed from RedeemedAt + ValidityDays; zero means the
	// redemption never expires.
	ExpiresAt time.Time
	UsedAt    time.Time
	Used      bool
}

// Expired reports whether the redemption can no longer be used.
func (r Redemption) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
