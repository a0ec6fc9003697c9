package enums

import "fmt"

// PolicyTier selects which daily rate and coverage apply to a subscription.
type PolicyTier string

const (
	PolicyTierStandard PolicyTier = "standard"
	PolicyTierPremium  PolicyTier = "premium"
)

// IsValid reports whether the value is a known policy tier.
func (t PolicyTier) IsValid() bool {
	return t == PolicyTierStandard || t == PolicyTierPremium
}

// ParsePolicyTier converts raw input into PolicyTier.
func ParsePolicyTier(value string) (PolicyTier, error) {
	switch PolicyTier(value) {
	case PolicyTierStandard:
		return PolicyTierStandard, nil
	case PolicyTierPremium:
		return PolicyTierPremium, nil
	default:
		return "", fmt.Errorf("invalid policy tier %q", value)
	}
}
