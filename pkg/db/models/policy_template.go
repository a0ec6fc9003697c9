package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PolicyTemplate defines the rates, coverage and duration bounds a
// subscription is cut from.
type PolicyTemplate struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID             uuid.UUID      `gorm:"column:creator_id;type:uuid;not null"`
	Name                  string         `gorm:"column:name;not null"`
	DailyRateCents        int64          `gorm:"column:daily_rate_cents;not null"`
	PremiumDailyRateCents int64          `gorm:"column:premium_daily_rate_cents;not null"`
	CoverageCents         int64          `gorm:"column:coverage_cents;not null"`
	PremiumCoverageCents  int64          `gorm:"column:premium_coverage_cents;not null"`
	MinDurationDays       int            `gorm:"column:min_duration_days;not null"`
	MaxDurationMonths     int            `gorm:"column:max_duration_months;not null"`
	CoveredCommodities    pq.StringArray `gorm:"column:covered_commodities;type:text[]"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
