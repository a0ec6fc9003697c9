package enums

// LedgerEntryKind maps to the ledger_entry_kind enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryKindPurchase       LedgerEntryKind = "purchase"
	LedgerEntryKindSaleCredit     LedgerEntryKind = "sale_credit"
	LedgerEntryKindOrderRefund    LedgerEntryKind = "order_refund"
	LedgerEntryKindPremiumPayment LedgerEntryKind = "premium_payment"
	LedgerEntryKindPolicyRefund   LedgerEntryKind = "policy_refund"
	LedgerEntryKindClaimPayout    LedgerEntryKind = "claim_payout"
	LedgerEntryKindFundAddition   LedgerEntryKind = "fund_addition"
	LedgerEntryKindAdjustment     LedgerEntryKind = "adjustment"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindPurchase,
	LedgerEntryKindSaleCredit,
	LedgerEntryKindOrderRefund,
	LedgerEntryKindPremiumPayment,
	LedgerEntryKindPolicyRefund,
	LedgerEntryKindClaimPayout,
	LedgerEntryKindFundAddition,
	LedgerEntryKindAdjustment,
}

// IsValid reports whether the value matches the canonical ledger kind enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// NormalizeLedgerEntryKind maps unknown kinds to the adjustment bucket instead
// of rejecting the write. Callers that produce new kinds keep flowing; the
// entry stays auditable under a real enum value.
func NormalizeLedgerEntryKind(value string) LedgerEntryKind {
	kind := LedgerEntryKind(value)
	if kind.IsValid() {
		return kind
	}
	return LedgerEntryKindAdjustment
}
