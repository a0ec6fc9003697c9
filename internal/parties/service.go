package parties

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
	"github.com/agrimandi/agrimarket-backend/pkg/validate"
)

// txRunner executes fn inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes party lookup, balance reads and funded top-ups.
type Service interface {
	GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error)
	GetPartyByEmail(ctx context.Context, email string) (*models.Party, error)
	GetBalance(ctx context.Context, id uuid.UUID) (int64, error)
	GetStatement(ctx context.Context, id uuid.UUID) ([]models.LedgerEntry, error)
	AddFunds(ctx context.Context, input AddFundsInput) (*models.LedgerEntry, error)
}

// AddFundsInput describes a balance top-up sourced from the treasury party.
type AddFundsInput struct {
	PartyID     uuid.UUID `json:"party_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"required,min=1"`
	Reference   string    `json:"reference,omitempty"`
}

type service struct {
	tx        txRunner
	repo      Repository
	ledgerSvc ledger.Service
	logg      *logger.Logger
}

// NewService wires the party service with its dependencies.
func NewService(tx txRunner, repo Repository, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, ledgerSvc: ledgerSvc, logg: logg}, nil
}

func (s *service) GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id is required")
	}
	party, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	return party, nil
}

func (s *service) GetPartyByEmail(ctx context.Context, email string) (*models.Party, error) {
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	party, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	return party, nil
}

func (s *service) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	if id == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "party id is required")
	}
	balance, err := s.repo.BalanceOf(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}

func (s *service) GetStatement(ctx context.Context, id uuid.UUID) ([]models.LedgerEntry, error) {
	if _, err := s.GetParty(ctx, id); err != nil {
		return nil, err
	}
	return s.ledgerSvc.GetEntries(ctx, id)
}

// AddFunds credits a party and books the matching fund_addition entry from the
// treasury party so the movement stays double-entry.
func (s *service) AddFunds(ctx context.Context, input AddFundsInput) (*models.LedgerEntry, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	party, err := s.GetParty(ctx, input.PartyID)
	if err != nil {
		return nil, err
	}

	treasury, err := s.repo.FindByExternalRef(ctx, models.ReservedTreasuryRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "treasury party is not provisioned")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load treasury party")
	}

	var entry *models.LedgerEntry
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Credit(ctx, party.ID, input.AmountCents); err != nil {
			return err
		}
		// The treasury mints by running negative; its posted entries still
		// net to its balance.
		if err := txRepo.DebitAllowingOverdraft(ctx, treasury.ID, input.AmountCents); err != nil {
			return err
		}

		var metadata json.RawMessage
		if input.Reference != "" {
			raw, marshalErr := json.Marshal(map[string]string{"reference": input.Reference})
			if marshalErr != nil {
				return marshalErr
			}
			metadata = raw
		}

		recorded, err := s.ledgerSvc.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: treasury.ID,
			ToPartyID:   party.ID,
			AmountCents: input.AmountCents,
			Kind:        string(enums.LedgerEntryKindFundAddition),
			RelatedID:   party.ID,
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}
		entry = recorded
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"party_id":     party.ID.String(),
		"amount_cents": input.AmountCents,
	})
	s.logg.Info(logCtx, "funds added")
	return entry, nil
}
