package token

import "strings"

// Tier is a principal's subscription tier as carried in claims.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps a raw tier string to a known Tier, case-insensitively.
// Unrecognized values fall back to free.
func ParseTier(s string) Tier {
	switch strings.ToLower(s) {
	case "pro":
		return TierPro
	case "enterprise":
		return TierEnterprise
	default:
		return TierFree
	}
}
