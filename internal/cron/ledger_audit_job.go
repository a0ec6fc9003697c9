package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
)

// partyLister reads the party directory with balances.
type partyLister interface {
	ListAll(ctx context.Context) ([]models.Party, error)
}

// postedBalancer nets a party's posted ledger entries.
type postedBalancer interface {
	NetPostedBalance(ctx context.Context, partyID uuid.UUID) (int64, error)
}

// LedgerAuditJobParams configures the balance reconciliation sweep.
type LedgerAuditJobParams struct {
	Logger    *logger.Logger
	PartyRepo partyLister
	Ledger    postedBalancer
}

// ledgerAuditJob recomputes each party balance from posted entries and flags
// drift. It never repairs; a mismatch means an invariant broke and a human
// looks at it.
type ledgerAuditJob struct {
	logg      *logger.Logger
	partyRepo partyLister
	ledger    postedBalancer
}

// NewLedgerAuditJob constructs the reconciliation job.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PartyRepo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerAuditJob{
		logg:      params.Logger,
		partyRepo: params.PartyRepo,
		ledger:    params.Ledger,
	}, nil
}

func (j *ledgerAuditJob) Name() string {
	return "ledger_audit"
}

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	all, err := j.partyRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list parties: %w", err)
	}

	mismatches := 0
	for _, party := range all {
		net, err := j.ledger.NetPostedBalance(ctx, party.ID)
		if err != nil {
			return fmt.Errorf("net posted balance for %s: %w", party.ID, err)
		}
		if net != party.BalanceCents {
			mismatches++
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"party_id":      party.ID.String(),
				"balance_cents": party.BalanceCents,
				"ledger_cents":  net,
			})
			j.logg.Error(logCtx, "party balance does not match posted ledger entries", nil)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"parties":    len(all),
		"mismatches": mismatches,
	})
	j.logg.Info(logCtx, "ledger audit complete")
	if mismatches > 0 {
		return fmt.Errorf("%d party balances drifted from the ledger", mismatches)
	}
	return nil
}
