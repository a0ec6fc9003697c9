package insurance

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

// Repository persists policy templates and subscriptions. Subscription status
// changes are guarded flips, same discipline as order transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPolicy(ctx context.Context, id uuid.UUID) (*models.PolicyTemplate, error)
	CreateSubscription(ctx context.Context, sub *models.InsuranceSubscription) error
	FindSubscription(ctx context.Context, id uuid.UUID) (*models.InsuranceSubscription, error)
	FindActiveBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*models.InsuranceSubscription, error)
	TransitionSubscription(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, updates map[string]any) error
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]models.InsuranceSubscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an insurance repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPolicy(ctx context.Context, id uuid.UUID) (*models.PolicyTemplate, error) {
	var policy models.PolicyTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&policy).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.InsuranceSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindSubscription(ctx context.Context, id uuid.UUID) (*models.InsuranceSubscription, error) {
	var sub models.InsuranceSubscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindActiveBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*models.InsuranceSubscription, error) {
	var sub models.InsuranceSubscription
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND status = ?", subscriberID, enums.SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// TransitionSubscription flips from→to only while the row still carries from.
func (r *repository) TransitionSubscription(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.InsuranceSubscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update subscription status")
	}
	if res.RowsAffected == 0 {
		current, err := r.FindSubscription(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status changed concurrently").
			WithDetails(map[string]string{
				"expected": string(from),
				"actual":   string(current.Status),
			})
	}
	return nil
}

func (r *repository) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]models.InsuranceSubscription, error) {
	var subs []models.InsuranceSubscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", enums.SubscriptionStatusActive, asOf).
		Order("end_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
