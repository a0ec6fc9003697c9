package insurance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

// CoverageDays counts billable days between start and end. Partial days bill
// as full days.
func CoverageDays(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	span := end.Sub(start)
	days := int(span / (24 * time.Hour))
	if span%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// CalculatePremium prices a subscription against the policy's duration bounds.
func CalculatePremium(policy *models.PolicyTemplate, start, end time.Time, tier enums.PolicyTier) (int64, error) {
	days := CoverageDays(start, end)
	if days <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	if days < policy.MinDurationDays {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "duration is below the policy minimum").
			WithDetails(map[string]int{
				"days":     days,
				"min_days": policy.MinDurationDays,
			})
	}
	if policy.MaxDurationMonths > 0 && end.After(start.AddDate(0, policy.MaxDurationMonths, 0)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "duration exceeds the policy maximum").
			WithDetails(map[string]int{
				"max_months": policy.MaxDurationMonths,
			})
	}

	rate := policy.DailyRateCents
	if tier == enums.PolicyTierPremium {
		rate = policy.PremiumDailyRateCents
	}
	return rate * int64(days), nil
}

// ProratedRefund returns the refundable slice of a premium for the unused
// days, rounded to the cent. Elapsed days are consumed in full; a subscriber
// four days into a ten-day policy keeps paying for four.
func ProratedRefund(premiumCents int64, totalDays, remainingDays int) int64 {
	if totalDays <= 0 || remainingDays <= 0 {
		return 0
	}
	if remainingDays >= totalDays {
		return premiumCents
	}
	refund := decimal.NewFromInt(premiumCents).
		Div(decimal.NewFromInt(int64(totalDays))).
		Mul(decimal.NewFromInt(int64(remainingDays))).
		Round(0)
	return refund.IntPart()
}

// ElapsedDays counts whole days consumed since start, clamped at zero.
func ElapsedDays(start, now time.Time) int {
	if !now.After(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}
