package model

// Tier identifies the data source strategy that produced a price.
// Callers use it for trust labeling only, never for control flow.
type Tier string

const (
	TierAuthoritative  Tier = "authoritative"
	TierScraped        Tier = "scraped"
	TierProviderAPI    Tier = "provider-api"
	TierProxyEstimated Tier = "proxy-estimated"
	TierInterpolated   Tier = "interpolated"
)

// Rank orders tiers by trustworthiness. Higher is stronger.
// A cached entry may only be overwritten by an equal-or-stronger tier.
func (t Tier) Rank() int {
	switch t {
	case TierAuthoritative:
		return 5
	case TierScraped:
		return 4
	case TierProviderAPI:
		return 3
	case TierProxyEstimated:
		return 2
	case TierInterpolated:
		return 1
	default:
		return 0
	}
}

func (t Tier) String() string { return string(t) }

// WeakestTier returns the lowest-ranked tier in the set. A series mixing
// tiers is labeled with the worst guarantee it actually used.
func WeakestTier(tiers []Tier) Tier {
	var weakest Tier
	for _, t := range tiers {
		if weakest == "" || t.Rank() < weakest.Rank() {
			weakest = t
		}
	}
	return weakest
}
