package enums

// ClaimStatus maps to the claim_status enum in Postgres.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
	ClaimStatusRefunded ClaimStatus = "refunded"
)

// IsValid reports whether the value is a known claim status.
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusRejected, ClaimStatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the claim can no longer change state.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusRefunded
}
