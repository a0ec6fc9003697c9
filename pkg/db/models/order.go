package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// Order tracks a purchase from placement through custody handoffs to a
// terminal state. The total is fixed at placement; price changes on the
// product never flow back into an order.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Qty            int               `gorm:"column:qty;not null"`
	UnitPriceCents int64             `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`

	LogisticsID   *uuid.UUID `gorm:"column:logistics_id;type:uuid"`
	ColdStorageID *uuid.UUID `gorm:"column:coldstorage_id;type:uuid"`

	ShippedToLogisticsAt   *time.Time `gorm:"column:shipped_to_logistics_at"`
	DispatchedToStorageAt  *time.Time `gorm:"column:dispatched_to_storage_at"`
	InColdStorageAt        *time.Time `gorm:"column:in_coldstorage_at"`
	DispatchedToCustomerAt *time.Time `gorm:"column:dispatched_to_customer_at"`
	DeliveredAt            *time.Time `gorm:"column:delivered_at"`
	CancelledAt            *time.Time `gorm:"column:cancelled_at"`

	Assignments []CustodyAssignment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
