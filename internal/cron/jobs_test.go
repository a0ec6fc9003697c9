package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubPartyLister struct {
	parties []models.Party
	err     error
}

func (s *stubPartyLister) ListAll(ctx context.Context) ([]models.Party, error) {
	return s.parties, s.err
}

type stubPostedBalancer struct {
	balances map[uuid.UUID]int64
	err      error
}

func (s *stubPostedBalancer) NetPostedBalance(ctx context.Context, partyID uuid.UUID) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.balances[partyID], nil
}

func TestLedgerAuditJobClean(t *testing.T) {
	a := models.Party{ID: uuid.New(), BalanceCents: 4000}
	b := models.Party{ID: uuid.New(), BalanceCents: -500}

	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:    testLogger(),
		PartyRepo: &stubPartyLister{parties: []models.Party{a, b}},
		Ledger: &stubPostedBalancer{balances: map[uuid.UUID]int64{
			a.ID: 4000,
			b.ID: -500,
		}},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected a clean audit, got %v", err)
	}
}

func TestLedgerAuditJobReportsDrift(t *testing.T) {
	a := models.Party{ID: uuid.New(), BalanceCents: 4000}
	b := models.Party{ID: uuid.New(), BalanceCents: 1000}

	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:    testLogger(),
		PartyRepo: &stubPartyLister{parties: []models.Party{a, b}},
		Ledger: &stubPostedBalancer{balances: map[uuid.UUID]int64{
			a.ID: 4000,
			b.ID: 900,
		}},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the drifted balance reported")
	}
	if !strings.Contains(err.Error(), "1 party balances drifted") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLedgerAuditJobPropagatesLookupFailure(t *testing.T) {
	boom := errors.New("ledger unavailable")
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:    testLogger(),
		PartyRepo: &stubPartyLister{parties: []models.Party{{ID: uuid.New()}}},
		Ledger:    &stubPostedBalancer{err: boom},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the lookup failure surfaced, got %v", err)
	}
}

type stubExpirer struct {
	batches []int
	calls   int
	err     error
}

func (s *stubExpirer) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	expired := s.batches[s.calls]
	s.calls++
	return expired, nil
}

func TestSubscriptionExpiryJobDrainsFullBatches(t *testing.T) {
	expirer := &stubExpirer{batches: []int{expiryBatchSize, expiryBatchSize, 17}}

	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:    testLogger(),
		Insurance: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two full batches keep the loop going; the short third batch ends it.
	if expirer.calls != 3 {
		t.Fatalf("expected 3 sweeps, got %d", expirer.calls)
	}
}

func TestSubscriptionExpiryJobStopsOnError(t *testing.T) {
	boom := errors.New("db down")
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:    testLogger(),
		Insurance: &stubExpirer{err: boom},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the sweep error surfaced, got %v", err)
	}
}
