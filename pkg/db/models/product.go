package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item owned by a seller. Catalog CRUD lives elsewhere;
// settlement only checks and decrements stock.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Commodity      string    `gorm:"column:commodity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	StockQty       int       `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
