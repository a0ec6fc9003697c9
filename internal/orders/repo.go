package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

// Repository persists orders and their custody assignments. Status changes go
// through TransitionStatus so two concurrent writers can never both win the
// same arc.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error
	AttachCustody(ctx context.Context, assignment *models.CustodyAssignment) error
	DetachCustody(ctx context.Context, orderID uuid.UUID) error
	LiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.CustodyAssignment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Assignments").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionStatus flips from→to only while the row still carries the from
// status. The guarded update is what serializes concurrent transitions: the
// loser updates zero rows and gets a state conflict.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update order status")
	}
	if res.RowsAffected == 0 {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]string{
				"expected": string(from),
				"actual":   string(current.Status),
			})
	}
	return nil
}

func (r *repository) AttachCustody(ctx context.Context, assignment *models.CustodyAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// DetachCustody closes any live assignment rows for the order.
func (r *repository) DetachCustody(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CustodyAssignment{}).
		Where("order_id = ? AND detached_at IS NULL", orderID).
		Update("detached_at", time.Now()).Error
}

func (r *repository) LiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.CustodyAssignment, error) {
	var assignment models.CustodyAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND detached_at IS NULL", orderID).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}
