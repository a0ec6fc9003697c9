package claims

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

// Repository persists complaints and claims. Both flip status through guarded
// updates so a racing second decision loses cleanly.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	FindComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindComplaintByOrder(ctx context.Context, orderID uuid.UUID) (*models.Complaint, error)
	TransitionComplaint(ctx context.Context, id uuid.UUID, from, to enums.ComplaintStatus) error

	CreateClaim(ctx context.Context, claim *models.Claim) error
	FindClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	FindClaimByComplaint(ctx context.Context, complaintID uuid.UUID) (*models.Claim, error)
	TransitionClaim(ctx context.Context, id uuid.UUID, from, to enums.ClaimStatus, updates map[string]any) error
	SumConsumedCoverage(ctx context.Context, subscriptionID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a claims repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	return r.db.WithContext(ctx).Create(complaint).Error
}

func (r *repository) FindComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&complaint).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *repository) FindComplaintByOrder(ctx context.Context, orderID uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&complaint).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *repository) TransitionComplaint(ctx context.Context, id uuid.UUID, from, to enums.ComplaintStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update complaint status")
	}
	if res.RowsAffected == 0 {
		return r.statusConflict(ctx, id, string(from))
	}
	return nil
}

func (r *repository) statusConflict(ctx context.Context, id uuid.UUID, expected string) error {
	current, err := r.FindComplaint(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load complaint")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "complaint status changed concurrently").
		WithDetails(map[string]string{
			"expected": expected,
			"actual":   string(current.Status),
		})
}

func (r *repository) CreateClaim(ctx context.Context, claim *models.Claim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

func (r *repository) FindClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) FindClaimByComplaint(ctx context.Context, complaintID uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	if err := r.db.WithContext(ctx).Where("complaint_id = ?", complaintID).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) TransitionClaim(ctx context.Context, id uuid.UUID, from, to enums.ClaimStatus, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update claim status")
	}
	if res.RowsAffected == 0 {
		current, err := r.FindClaim(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claim")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "claim status changed concurrently").
			WithDetails(map[string]string{
				"expected": string(from),
				"actual":   string(current.Status),
			})
	}
	return nil
}

// SumConsumedCoverage totals claim amounts already charged against the
// subscription. Rejected claims release their slice of coverage.
func (r *repository) SumConsumedCoverage(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT COALESCE(SUM(amount_cents), 0)
			FROM claims
			WHERE subscription_id = ? AND status != ?
		`, subscriptionID, enums.ClaimStatusRejected).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
