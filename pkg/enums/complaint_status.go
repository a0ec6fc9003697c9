package enums

// ComplaintStatus maps to the complaint_status enum in Postgres.
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "open"
	ComplaintStatusClaimFiled ComplaintStatus = "claim_filed"
	ComplaintStatusRefunded   ComplaintStatus = "refunded"
	ComplaintStatusClosed     ComplaintStatus = "closed"
)

// IsValid reports whether the value is a known complaint status.
func (s ComplaintStatus) IsValid() bool {
	switch s {
	case ComplaintStatusOpen, ComplaintStatusClaimFiled, ComplaintStatusRefunded, ComplaintStatusClosed:
		return true
	default:
		return false
	}
}
