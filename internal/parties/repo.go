package parties

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
)

// Repository is the party directory plus the balance store. Balance writes
// are guarded updates so concurrent settlements on the same party cannot
// lose increments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, party *models.Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error)
	FindByEmail(ctx context.Context, email string) (*models.Party, error)
	FindByExternalRef(ctx context.Context, ref string) (*models.Party, error)
	FindAnyByRole(ctx context.Context, role enums.PartyRole) (*models.Party, error)
	ListAll(ctx context.Context) ([]models.Party, error)
	BalanceOf(ctx context.Context, id uuid.UUID) (int64, error)
	Debit(ctx context.Context, id uuid.UUID, amountCents int64) error
	DebitAllowingOverdraft(ctx context.Context, id uuid.UUID, amountCents int64) error
	Credit(ctx context.Context, id uuid.UUID, amountCents int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a party repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, party *models.Party) error {
	return r.db.WithContext(ctx).Create(party).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	var party models.Party
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Party, error) {
	var party models.Party
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *repository) FindByExternalRef(ctx context.Context, ref string) (*models.Party, error) {
	var party models.Party
	if err := r.db.WithContext(ctx).Where("external_ref = ?", ref).First(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *repository) FindAnyByRole(ctx context.Context, role enums.PartyRole) (*models.Party, error) {
	var party models.Party
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at ASC").
		First(&party).Error
	if err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Party, error) {
	var all []models.Party
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&all).Error
	return all, err
}

func (r *repository) BalanceOf(ctx context.Context, id uuid.UUID) (int64, error) {
	var party models.Party
	err := r.db.WithContext(ctx).
		Select("balance_cents").
		Where("id = ?", id).
		First(&party).Error
	if err != nil {
		return 0, err
	}
	return party.BalanceCents, nil
}

// Debit subtracts amountCents only while the balance covers it.
func (r *repository) Debit(ctx context.Context, id uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE parties
		SET balance_cents = balance_cents - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND balance_cents >= ?
	`, amountCents, id, amountCents)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "debit balance")
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance does not cover debit")
	}
	return nil
}

// DebitAllowingOverdraft subtracts without a balance guard. Used only where a
// documented policy flag permits negative balances.
func (r *repository) DebitAllowingOverdraft(ctx context.Context, id uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE parties
		SET balance_cents = balance_cents - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amountCents, id)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "debit balance")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
	}
	return nil
}

func (r *repository) Credit(ctx context.Context, id uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE parties
		SET balance_cents = balance_cents + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amountCents, id)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "credit balance")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
	}
	return nil
}
