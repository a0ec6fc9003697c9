package insurance

import (
	"testing"
	"time"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

func day(n int) time.Time {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testPolicy() *models.PolicyTemplate {
	return &models.PolicyTemplate{
		DailyRateCents:        500,
		PremiumDailyRateCents: 900,
		CoverageCents:         100_000,
		PremiumCoverageCents:  250_000,
		MinDurationDays:       5,
		MaxDurationMonths:     6,
	}
}

func TestCoverageDays(t *testing.T) {
	if got := CoverageDays(day(0), day(10)); got != 10 {
		t.Fatalf("expected 10 days, got %d", got)
	}
	// A partial trailing day bills as a full day.
	if got := CoverageDays(day(0), day(10).Add(6*time.Hour)); got != 11 {
		t.Fatalf("expected 11 days for 10d6h, got %d", got)
	}
	if got := CoverageDays(day(3), day(3)); got != 0 {
		t.Fatalf("expected 0 days for an empty span, got %d", got)
	}
	if got := CoverageDays(day(5), day(1)); got != 0 {
		t.Fatalf("expected 0 days for an inverted span, got %d", got)
	}
}

func TestCalculatePremium(t *testing.T) {
	policy := testPolicy()

	premium, err := CalculatePremium(policy, day(0), day(10), enums.PolicyTierStandard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if premium != 5000 {
		t.Fatalf("expected 5000 cents for 10 days at 500/day, got %d", premium)
	}

	premium, err = CalculatePremium(policy, day(0), day(10), enums.PolicyTierPremium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if premium != 9000 {
		t.Fatalf("expected 9000 cents at the premium rate, got %d", premium)
	}
}

func TestCalculatePremiumDurationBounds(t *testing.T) {
	policy := testPolicy()

	_, err := CalculatePremium(policy, day(10), day(10), enums.PolicyTierStandard)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty span, got %v", err)
	}

	_, err = CalculatePremium(policy, day(0), day(3), enums.PolicyTierStandard)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error below the minimum, got %v", err)
	}

	_, err = CalculatePremium(policy, day(0), day(0).AddDate(0, 7, 0), enums.PolicyTierStandard)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error past the maximum, got %v", err)
	}

	// Exactly at the maximum is allowed.
	if _, err := CalculatePremium(policy, day(0), day(0).AddDate(0, 6, 0), enums.PolicyTierStandard); err != nil {
		t.Fatalf("unexpected error at the duration ceiling: %v", err)
	}
}

func TestProratedRefund(t *testing.T) {
	// Four days into a ten-day $50 policy: six unused days refund $30.
	if got := ProratedRefund(5000, 10, 6); got != 3000 {
		t.Fatalf("expected 3000, got %d", got)
	}
	// Immediate cancel refunds the full premium.
	if got := ProratedRefund(5000, 10, 10); got != 5000 {
		t.Fatalf("expected full refund, got %d", got)
	}
	// Fully elapsed refunds nothing.
	if got := ProratedRefund(5000, 10, 0); got != 0 {
		t.Fatalf("expected zero refund, got %d", got)
	}
	if got := ProratedRefund(5000, 10, -2); got != 0 {
		t.Fatalf("expected zero refund for negative remainder, got %d", got)
	}
	// Uneven division rounds to the cent.
	if got := ProratedRefund(1000, 3, 1); got != 333 {
		t.Fatalf("expected 333, got %d", got)
	}
}

func TestElapsedDays(t *testing.T) {
	if got := ElapsedDays(day(0), day(4)); got != 4 {
		t.Fatalf("expected 4 elapsed days, got %d", got)
	}
	// Partial days do not count against the subscriber.
	if got := ElapsedDays(day(0), day(4).Add(10*time.Hour)); got != 4 {
		t.Fatalf("expected 4 elapsed days mid-fifth-day, got %d", got)
	}
	if got := ElapsedDays(day(4), day(0)); got != 0 {
		t.Fatalf("expected 0 for a start in the future, got %d", got)
	}
}
