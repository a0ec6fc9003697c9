package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
)

// Service defines operations that record and read ledger entries.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	GetEntries(ctx context.Context, partyID uuid.UUID) ([]models.LedgerEntry, error)
	GetEntriesByRelatedID(ctx context.Context, relatedID uuid.UUID) ([]models.LedgerEntry, error)
	NetPostedBalance(ctx context.Context, partyID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires. Kind
// is raw text on purpose: unknown kinds are remapped to adjustment, not
// rejected.
type RecordEntryInput struct {
	FromPartyID uuid.UUID       `json:"from_party_id"`
	ToPartyID   uuid.UUID       `json:"to_party_id"`
	AmountCents int64           `json:"amount_cents"`
	Kind        string          `json:"kind"`
	RelatedID   uuid.UUID       `json:"related_id"`
	Memo        bool            `json:"memo"`
	Metadata    json.RawMessage `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.FromPartyID == uuid.Nil {
		return nil, fmt.Errorf("from party id is required")
	}
	if input.ToPartyID == uuid.Nil {
		return nil, fmt.Errorf("to party id is required")
	}
	if input.RelatedID == uuid.Nil {
		return nil, fmt.Errorf("related id is required")
	}
	if input.AmountCents == 0 {
		return nil, fmt.Errorf("amount must be non-zero")
	}

	status := models.LedgerEntryStatusPosted
	if input.Memo {
		status = models.LedgerEntryStatusMemo
	}

	entry := &models.LedgerEntry{
		FromPartyID: input.FromPartyID,
		ToPartyID:   input.ToPartyID,
		AmountCents: input.AmountCents,
		Kind:        enums.NormalizeLedgerEntryKind(input.Kind),
		RelatedID:   input.RelatedID,
		Status:      status,
		Metadata:    input.Metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) GetEntries(ctx context.Context, partyID uuid.UUID) ([]models.LedgerEntry, error) {
	if partyID == uuid.Nil {
		return nil, fmt.Errorf("party id is required")
	}
	return s.repo.ListByParty(ctx, partyID)
}

func (s *service) GetEntriesByRelatedID(ctx context.Context, relatedID uuid.UUID) ([]models.LedgerEntry, error) {
	if relatedID == uuid.Nil {
		return nil, fmt.Errorf("related id is required")
	}
	return s.repo.ListByRelatedID(ctx, relatedID)
}

func (s *service) NetPostedBalance(ctx context.Context, partyID uuid.UUID) (int64, error) {
	if partyID == uuid.Nil {
		return 0, fmt.Errorf("party id is required")
	}
	return s.repo.SumPostedByParty(ctx, partyID)
}
