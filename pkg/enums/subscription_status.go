package enums

// SubscriptionStatus maps to the subscription_status enum in Postgres.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// IsValid reports whether the value is a known subscription status.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the subscription can no longer change state.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}
