package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// Claim is a seller's request to be made whole for a complained-about order,
// settled agent→buyer.
type Claim struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ComplaintID    uuid.UUID         `gorm:"column:complaint_id;type:uuid;uniqueIndex;not null"`
	SubscriptionID uuid.UUID         `gorm:"column:subscription_id;type:uuid;not null"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	AgentID        uuid.UUID         `gorm:"column:agent_id;type:uuid;not null"`
	AmountCents    int64             `gorm:"column:amount_cents;not null"`
	Status         enums.ClaimStatus `gorm:"column:status;type:claim_status;not null;default:'pending'"`
	DecidedAt      *time.Time        `gorm:"column:decided_at"`
	RefundedAt     *time.Time        `gorm:"column:refunded_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
