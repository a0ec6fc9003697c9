package enums

import "testing"

func TestNormalizeLedgerEntryKind(t *testing.T) {
	if got := NormalizeLedgerEntryKind("purchase"); got != LedgerEntryKindPurchase {
		t.Fatalf("expected purchase, got %s", got)
	}
	if got := NormalizeLedgerEntryKind("claim_payout"); got != LedgerEntryKindClaimPayout {
		t.Fatalf("expected claim_payout, got %s", got)
	}
	// Unknown kinds funnel into adjustment rather than failing the write.
	if got := NormalizeLedgerEntryKind("loyalty_bonus"); got != LedgerEntryKindAdjustment {
		t.Fatalf("expected adjustment for unknown kind, got %s", got)
	}
	if got := NormalizeLedgerEntryKind(""); got != LedgerEntryKindAdjustment {
		t.Fatalf("expected adjustment for empty kind, got %s", got)
	}
}
