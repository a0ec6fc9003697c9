package models

import (
	"time"

	"github.com/google/uuid"
)

// CustodyAssignment records which carrier/vehicle currently holds the goods.
// Informational only; payment state never depends on it. Cancelling an order
// detaches any live assignment.
type CustodyAssignment struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	CarrierID  uuid.UUID  `gorm:"column:carrier_id;type:uuid;not null"`
	DriverID   *uuid.UUID `gorm:"column:driver_id;type:uuid"`
	VehicleRef *string    `gorm:"column:vehicle_ref"`
	DetachedAt *time.Time `gorm:"column:detached_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
