package domain

// OperatorTier enumerates permission tiers for operator API callers. Identity
// itself is validated by the host platform's role system; tokens only carry
// the tier the dispatcher already resolved.
type OperatorTier string

const (
	TierHelper    OperatorTier = "HELPER"
	TierModerator OperatorTier = "MODERATOR"
	TierAdmin     OperatorTier = "ADMIN"
)

var tierRank = map[OperatorTier]int{
	TierHelper:    1,
	TierModerator: 2,
	TierAdmin:     3,
}

// AtLeast reports whether the tier meets or exceeds the required tier.
func (t OperatorTier) AtLeast(required OperatorTier) bool {
	return tierRank[t] >= tierRank[required]
}

// Valid reports whether the tier is a known value.
func (t OperatorTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}
