package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

// Repository covers the catalog surface settlement consumes: lookup plus
// guarded stock movement. Catalog CRUD is owned elsewhere.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	RestoreStock(ctx context.Context, id uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a product repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock reserves qty units with a guarded update so two concurrent
// orders can never oversell.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_qty = stock_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_qty >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock available")
	}
	return nil
}

func (r *repository) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_qty = stock_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
