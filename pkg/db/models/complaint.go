package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// Complaint is a buyer's report against a delivered-or-dispatched order. The
// insurance snapshot is captured for audit only; claim decisions re-validate
// live state.
type Complaint struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`
	FilerID                uuid.UUID             `gorm:"column:filer_id;type:uuid;not null"`
	Reason                 string                `gorm:"column:reason;not null"`
	SellerInsuredSnapshot  bool                  `gorm:"column:seller_insured_snapshot;not null;default:false"`
	SnapshotSubscriptionID *uuid.UUID            `gorm:"column:snapshot_subscription_id;type:uuid"`
	Status                 enums.ComplaintStatus `gorm:"column:status;type:complaint_status;not null;default:'open'"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
