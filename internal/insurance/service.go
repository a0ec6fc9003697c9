package insurance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/db"
	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
	"github.com/agrimandi/agrimarket-backend/pkg/metrics"
	"github.com/agrimandi/agrimarket-backend/pkg/outbox"
	"github.com/agrimandi/agrimarket-backend/pkg/outbox/payloads"
	"github.com/agrimandi/agrimarket-backend/pkg/validate"
)

// txRunner executes fn inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// outboxEmitter stages a domain event inside the caller's transaction.
type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages insurance subscriptions: premium collection on subscribe,
// prorated refunds on cancel, expiry sweeps for the cron worker.
type Service interface {
	Subscribe(ctx context.Context, input SubscribeInput) (*models.InsuranceSubscription, error)
	CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*models.InsuranceSubscription, error)
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	partyRepo parties.Repository
	ledgerSvc ledger.Service
	outboxSvc outboxEmitter
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the insurance service. now is injectable for tests and
// defaults to time.Now.
func NewService(
	tx txRunner,
	repo Repository,
	partyRepo parties.Repository,
	ledgerSvc ledger.Service,
	outboxSvc outboxEmitter,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("insurance repository required")
	}
	if partyRepo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        tx,
		repo:      repo,
		partyRepo: partyRepo,
		ledgerSvc: ledgerSvc,
		outboxSvc: outboxSvc,
		metrics:   settlementMetrics,
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Subscribe(ctx context.Context, input SubscribeInput) (*models.InsuranceSubscription, error) {
	start := time.Now()
	sub, err := s.subscribe(ctx, input)
	s.metrics.ObserveOperation("subscribe", outcomeLabel(err), time.Since(start))
	if err == nil {
		s.metrics.AddLedgerEntries(1)
	}
	return sub, err
}

func (s *service) subscribe(ctx context.Context, input SubscribeInput) (*models.InsuranceSubscription, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	tier, err := enums.ParsePolicyTier(input.Tier)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	subscriber, err := s.loadParty(ctx, input.SubscriberID)
	if err != nil {
		return nil, err
	}

	policy, err := s.repo.FindPolicy(ctx, input.PolicyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "policy not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policy")
	}

	premium, err := CalculatePremium(policy, input.StartDate, input.EndDate, tier)
	if err != nil {
		return nil, err
	}
	coverage := policy.CoverageCents
	if tier == enums.PolicyTierPremium {
		coverage = policy.PremiumCoverageCents
	}

	// Fast-path check; the partial unique index is the real guard against a
	// racing second subscribe.
	if _, err := s.repo.FindActiveBySubscriber(ctx, subscriber.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "subscriber already holds an active subscription")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active subscription")
	}

	agent, err := s.resolveSubscribeAgent(ctx, input.AgentID, policy)
	if err != nil {
		return nil, err
	}

	agentID := agent.ID
	sub := &models.InsuranceSubscription{
		PolicyID:      policy.ID,
		SubscriberID:  subscriber.ID,
		AgentID:       &agentID,
		Tier:          tier,
		PremiumCents:  premium,
		CoverageCents: coverage,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Status:        enums.SubscriptionStatusActive,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txParties := s.partyRepo.WithTx(tx)
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledgerSvc.WithTx(tx)

		if err := txRepo.CreateSubscription(ctx, sub); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "subscriber already holds an active subscription")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		if err := txParties.Debit(ctx, subscriber.ID, premium); err != nil {
			return err
		}
		if err := txParties.Credit(ctx, agent.ID, premium); err != nil {
			return err
		}
		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: subscriber.ID,
			ToPartyID:   agent.ID,
			AmountCents: premium,
			Kind:        string(enums.LedgerEntryKindPremiumPayment),
			RelatedID:   sub.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record premium entry")
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPolicySubscribed,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{PartyID: subscriber.ID, Role: string(subscriber.Role)},
			Data: payloads.PolicySubscribedEvent{
				SubscriptionID: sub.ID,
				SubscriberID:   subscriber.ID,
				AgentID:        agent.ID,
				PremiumCents:   premium,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"subscriber_id":   subscriber.ID.String(),
		"premium_cents":   premium,
	})
	s.logg.Info(logCtx, "policy subscribed")
	return sub, nil
}

func (s *service) CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*models.InsuranceSubscription, error) {
	start := time.Now()
	sub, refund, err := s.cancelSubscription(ctx, input)
	s.metrics.ObserveOperation("cancel_subscription", outcomeLabel(err), time.Since(start))
	// A zero-refund cancel writes no ledger entry.
	if err == nil && refund > 0 {
		s.metrics.AddLedgerEntries(1)
	}
	return sub, err
}

func (s *service) cancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*models.InsuranceSubscription, int64, error) {
	if err := validate.Struct(input); err != nil {
		return nil, 0, err
	}

	sub, err := s.repo.FindActiveBySubscriber(ctx, input.SubscriberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	now := s.now()
	if now.After(sub.EndDate) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already past its end date")
	}

	totalDays := CoverageDays(sub.StartDate, sub.EndDate)
	remaining := totalDays - ElapsedDays(sub.StartDate, now)
	refund := ProratedRefund(sub.PremiumCents, totalDays, remaining)

	agentID, err := s.recordedAgent(ctx, sub)
	if err != nil {
		return nil, 0, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txParties := s.partyRepo.WithTx(tx)
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledgerSvc.WithTx(tx)

		if err := txRepo.TransitionSubscription(ctx, sub.ID, enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled, map[string]any{
			"cancelled_at": now,
		}); err != nil {
			return err
		}

		if refund > 0 {
			if err := txParties.Credit(ctx, sub.SubscriberID, refund); err != nil {
				return err
			}
			if err := txParties.Debit(ctx, agentID, refund); err != nil {
				return err
			}
			if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
				FromPartyID: agentID,
				ToPartyID:   sub.SubscriberID,
				AmountCents: refund,
				Kind:        string(enums.LedgerEntryKindPolicyRefund),
				RelatedID:   sub.ID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund entry")
			}
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPolicyCancelled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{PartyID: sub.SubscriberID},
			Data: payloads.PolicyCancelledEvent{
				SubscriptionID: sub.ID,
				SubscriberID:   sub.SubscriberID,
				RefundCents:    refund,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, 0, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"refund_cents":    refund,
	})
	s.logg.Info(logCtx, "policy cancelled")

	updated, err := s.repo.FindSubscription(ctx, sub.ID)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload subscription")
	}
	return updated, refund, nil
}

// ExpireOverdue flips active subscriptions whose end date has passed. Pure
// state maintenance, no money moves.
func (s *service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	overdue, err := s.repo.ListOverdue(ctx, s.now(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue subscriptions")
	}

	expired := 0
	for _, sub := range overdue {
		err := s.repo.TransitionSubscription(ctx, sub.ID, enums.SubscriptionStatusActive, enums.SubscriptionStatusExpired, nil)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// resolveSubscribeAgent picks who collects the premium: the explicit agent,
// else the policy creator when they hold the insurance role, else the
// reserved pool party.
func (s *service) resolveSubscribeAgent(ctx context.Context, explicit *uuid.UUID, policy *models.PolicyTemplate) (*models.Party, error) {
	if explicit != nil {
		agent, err := s.loadParty(ctx, *explicit)
		if err != nil {
			return nil, err
		}
		if agent.Role != enums.PartyRoleInsurance {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent party does not hold the insurance role")
		}
		return agent, nil
	}

	creator, err := s.partyRepo.FindByID(ctx, policy.CreatorID)
	if err == nil && creator.Role == enums.PartyRoleInsurance {
		return creator, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policy creator")
	}

	pool, err := s.partyRepo.FindByExternalRef(ctx, models.ReservedAgentPoolRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "agent pool party is not provisioned")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent pool")
	}
	return pool, nil
}

// recordedAgent returns the party that collected the premium.
func (s *service) recordedAgent(ctx context.Context, sub *models.InsuranceSubscription) (uuid.UUID, error) {
	if sub.AgentID != nil {
		return *sub.AgentID, nil
	}
	pool, err := s.partyRepo.FindByExternalRef(ctx, models.ReservedAgentPoolRef)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent pool")
	}
	return pool.ID, nil
}

func (s *service) loadParty(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	party, err := s.partyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	return party, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
