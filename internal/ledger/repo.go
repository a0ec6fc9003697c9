package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
)

// Repository manages persistence for ledger entries. The table is append-only;
// there are deliberately no update or delete operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByParty(ctx context.Context, partyID uuid.UUID) ([]models.LedgerEntry, error)
	ListByRelatedID(ctx context.Context, relatedID uuid.UUID) ([]models.LedgerEntry, error)
	SumPostedByParty(ctx context.Context, partyID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByParty(ctx context.Context, partyID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("from_party_id = ? OR to_party_id = ?", partyID, partyID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByRelatedID(ctx context.Context, relatedID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("related_id = ?", relatedID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumPostedByParty nets all posted movements for one party: credits in,
// debits out. Memo entries are excluded so counterparty views do not double
// count.
func (r *repository) SumPostedByParty(ctx context.Context, partyID uuid.UUID) (int64, error) {
	var total struct {
		Net int64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE
			WHEN to_party_id = ? AND from_party_id = ? THEN 0
			WHEN to_party_id = ? THEN amount_cents
			ELSE -amount_cents
		END), 0) AS net
		FROM ledger_entries
		WHERE (from_party_id = ? OR to_party_id = ?) AND status = ?
	`, partyID, partyID, partyID, partyID, partyID, models.LedgerEntryStatusPosted).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total.Net, nil
}
