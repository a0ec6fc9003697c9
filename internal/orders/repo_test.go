package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  logistics_id TEXT,
  coldstorage_id TEXT,
  shipped_to_logistics_at DATETIME,
  dispatched_to_storage_at DATETIME,
  in_coldstorage_at DATETIME,
  dispatched_to_customer_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	custody := `
CREATE TABLE IF NOT EXISTS custody_assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  carrier_id TEXT NOT NULL,
  driver_id TEXT,
  vehicle_ref TEXT,
  detached_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(custody).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		Qty:            2,
		UnitPriceCents: 3000,
		TotalCents:     6000,
		Status:         status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestTransitionStatusGuard(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)

	err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusShippedToLogistics, map[string]any{
		"shipped_to_logistics_at": time.Now(),
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShippedToLogistics, reloaded.Status)
	assert.NotNil(t, reloaded.ShippedToLogisticsAt)

	// A second writer still expecting pending loses with a state conflict.
	err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusShippedToLogistics, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestTransitionStatusUnknownOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	err := repo.TransitionStatus(context.Background(), uuid.New(), enums.OrderStatusPending, enums.OrderStatusCancelled, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCustodyAttachDetach(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusShipped)
	carrier := uuid.New()
	driver := uuid.New()
	vehicle := "KA-01-HH-1234"

	require.NoError(t, repo.AttachCustody(ctx, &models.CustodyAssignment{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CarrierID:  carrier,
		DriverID:   &driver,
		VehicleRef: &vehicle,
	}))

	live, err := repo.LiveAssignment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, carrier, live.CarrierID)
	require.NotNil(t, live.DriverID)
	assert.Equal(t, driver, *live.DriverID)

	require.NoError(t, repo.DetachCustody(ctx, order.ID))
	_, err = repo.LiveAssignment(ctx, order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Detaching with nothing attached is a no-op, not an error.
	require.NoError(t, repo.DetachCustody(ctx, order.ID))
}

func TestFindByIDPreloadsAssignments(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusShipped)
	require.NoError(t, repo.AttachCustody(ctx, &models.CustodyAssignment{
		ID:        uuid.New(),
		OrderID:   order.ID,
		CarrierID: uuid.New(),
	}))

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Assignments, 1)
}
