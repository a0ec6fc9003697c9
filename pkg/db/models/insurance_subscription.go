package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// InsuranceSubscription is one subscriber's active slice of a policy template.
// Premium and coverage are frozen at subscribe time.
type InsuranceSubscription struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PolicyID      uuid.UUID                `gorm:"column:policy_id;type:uuid;not null"`
	SubscriberID  uuid.UUID                `gorm:"column:subscriber_id;type:uuid;not null"`
	AgentID       *uuid.UUID               `gorm:"column:agent_id;type:uuid"`
	Tier          enums.PolicyTier         `gorm:"column:tier;type:policy_tier;not null"`
	PremiumCents  int64                    `gorm:"column:premium_cents;not null"`
	CoverageCents int64                    `gorm:"column:coverage_cents;not null"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       time.Time                `gorm:"column:end_date;not null"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CancelledAt   *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
