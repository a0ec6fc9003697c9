package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/insurance"
	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/internal/orders"
	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/config"
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

// Service runs the complaint → claim → refund pipeline. Complaint snapshots
// are informational; every claim decision re-validates live state.
type Service interface {
	FileComplaint(ctx context.Context, input FileComplaintInput) (*models.Complaint, error)
	FileClaim(ctx context.Context, input FileClaimInput) (*models.Claim, error)
	ApproveClaim(ctx context.Context, input ApproveClaimInput) (*models.Claim, error)
	RejectClaim(ctx context.Context, input RejectClaimInput) (*models.Claim, error)
	ProcessRefund(ctx context.Context, input ProcessRefundInput) (*models.Claim, error)
}

type service struct {
	tx            txRunner
	repo          Repository
	orderRepo     orders.Repository
	partyRepo     parties.Repository
	insuranceRepo insurance.Repository
	ledgerSvc     ledger.Service
	resolver      *AgentResolver
	outboxSvc     outboxEmitter
	metrics       *metrics.SettlementMetrics
	cfg           config.ClaimsConfig
	logg          *logger.Logger
	now           func() time.Time
}

// NewService wires the claim settlement engine. now is injectable for tests
// and defaults to time.Now.
func NewService(
	tx txRunner,
	repo Repository,
	orderRepo orders.Repository,
	partyRepo parties.Repository,
	insuranceRepo insurance.Repository,
	ledgerSvc ledger.Service,
	resolver *AgentResolver,
	outboxSvc outboxEmitter,
	settlementMetrics *metrics.SettlementMetrics,
	cfg config.ClaimsConfig,
	logg *logger.Logger,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("claims repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if partyRepo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if insuranceRepo == nil {
		return nil, fmt.Errorf("insurance repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("agent resolver required")
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
		tx:            tx,
		repo:          repo,
		orderRepo:     orderRepo,
		partyRepo:     partyRepo,
		insuranceRepo: insuranceRepo,
		ledgerSvc:     ledgerSvc,
		resolver:      resolver,
		outboxSvc:     outboxSvc,
		metrics:       settlementMetrics,
		cfg:           cfg,
		logg:          logg,
		now:           now,
	}, nil
}

func (s *service) FileComplaint(ctx context.Context, input FileComplaintInput) (*models.Complaint, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.FilerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the order's buyer may file a complaint")
	}
	if order.DispatchedToCustomerAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been dispatched to the customer")
	}
	if s.now().After(order.DispatchedToCustomerAt.Add(s.cfg.ComplaintSLA)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint window has closed").
			WithDetails(map[string]string{"sla": s.cfg.ComplaintSLA.String()})
	}

	if _, err := s.repo.FindComplaintByOrder(ctx, order.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a complaint already exists for this order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing complaint")
	}

	// Audit snapshot of the seller's insurance standing right now. Claim
	// decisions never read it back.
	insured := false
	var snapshotID *uuid.UUID
	if sub, err := s.insuranceRepo.FindActiveBySubscriber(ctx, order.SellerID); err == nil {
		insured = true
		id := sub.ID
		snapshotID = &id
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "snapshot seller insurance")
	}

	complaint := &models.Complaint{
		OrderID:                order.ID,
		FilerID:                input.FilerID,
		Reason:                 input.Reason,
		SellerInsuredSnapshot:  insured,
		SnapshotSubscriptionID: snapshotID,
		Status:                 enums.ComplaintStatusOpen,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateComplaint(ctx, complaint); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a complaint already exists for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create complaint")
		}
		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventComplaintFiled,
			AggregateType: enums.AggregateComplaint,
			AggregateID:   complaint.ID,
			Actor:         &outbox.ActorRef{PartyID: input.FilerID},
			Data: payloads.ComplaintFiledEvent{
				ComplaintID: complaint.ID,
				OrderID:     order.ID,
				FilerID:     input.FilerID,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "complaint filed")
	return complaint, nil
}

func (s *service) FileClaim(ctx context.Context, input FileClaimInput) (*models.Claim, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	complaint, err := s.loadComplaint(ctx, input.ComplaintID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, complaint.OrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the order's seller may file a claim")
	}
	if complaint.Status != enums.ComplaintStatusOpen {
		if complaint.Status == enums.ComplaintStatusClaimFiled {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a claim already exists for this complaint")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "complaint is no longer open").
			WithDetails(map[string]string{"status": string(complaint.Status)})
	}

	// Live revalidation; the complaint's snapshot is deliberately ignored.
	sub, err := s.insuranceRepo.FindActiveBySubscriber(ctx, order.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller holds no active policy")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller subscription")
	}

	claimAmount := order.TotalCents
	if err := s.checkCoverageWindow(ctx, order, sub); err != nil {
		return nil, err
	}

	consumed, err := s.repo.SumConsumedCoverage(ctx, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum consumed coverage")
	}
	if consumed+claimAmount > sub.CoverageCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim exceeds remaining coverage").
			WithDetails(map[string]int64{
				"claim_cents":    claimAmount,
				"consumed_cents": consumed,
				"coverage_cents": sub.CoverageCents,
			})
	}

	policy, err := s.insuranceRepo.FindPolicy(ctx, sub.PolicyID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policy")
	}
	agent, err := s.resolver.Resolve(ctx, resolveInput{
		Explicit:     input.AgentID,
		Policy:       policy,
		Subscription: sub,
	})
	if err != nil {
		return nil, err
	}

	claim := &models.Claim{
		ComplaintID:    complaint.ID,
		SubscriptionID: sub.ID,
		OrderID:        order.ID,
		SellerID:       order.SellerID,
		AgentID:        agent.ID,
		AmountCents:    claimAmount,
		Status:         enums.ClaimStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.TransitionComplaint(ctx, complaint.ID, enums.ComplaintStatusOpen, enums.ComplaintStatusClaimFiled); err != nil {
			return err
		}
		if err := txRepo.CreateClaim(ctx, claim); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a claim already exists for this complaint")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create claim")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"agent_id":     agent.ID.String(),
		"amount_cents": claimAmount,
	})
	s.logg.Info(logCtx, "claim filed")
	return claim, nil
}

func (s *service) ApproveClaim(ctx context.Context, input ApproveClaimInput) (*models.Claim, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	claim, err := s.loadClaim(ctx, input.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim.AgentID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may decide this claim")
	}
	err = s.repo.TransitionClaim(ctx, claim.ID, enums.ClaimStatusPending, enums.ClaimStatusApproved, map[string]any{
		"decided_at": s.now(),
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
	s.logg.Info(logCtx, "claim approved")
	return s.loadClaim(ctx, claim.ID)
}

func (s *service) RejectClaim(ctx context.Context, input RejectClaimInput) (*models.Claim, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	claim, err := s.loadClaim(ctx, input.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim.AgentID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may decide this claim")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.TransitionClaim(ctx, claim.ID, enums.ClaimStatusPending, enums.ClaimStatusRejected, map[string]any{
			"decided_at": s.now(),
		}); err != nil {
			return err
		}
		return txRepo.TransitionComplaint(ctx, claim.ComplaintID, enums.ComplaintStatusClaimFiled, enums.ComplaintStatusClosed)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
	s.logg.Info(logCtx, "claim rejected")
	return s.loadClaim(ctx, claim.ID)
}

func (s *service) ProcessRefund(ctx context.Context, input ProcessRefundInput) (*models.Claim, error) {
	start := time.Now()
	claim, err := s.processRefund(ctx, input)
	s.metrics.ObserveOperation("process_refund", outcomeLabel(err), time.Since(start))
	if err == nil {
		s.metrics.AddLedgerEntries(2)
	}
	return claim, err
}

func (s *service) processRefund(ctx context.Context, input ProcessRefundInput) (*models.Claim, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	claim, err := s.loadClaim(ctx, input.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim.AgentID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may settle this claim")
	}
	if claim.Status == enums.ClaimStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "claim is already refunded")
	}
	if claim.Status != enums.ClaimStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "claim must be approved before refund").
			WithDetails(map[string]string{"status": string(claim.Status)})
	}

	order, err := s.loadOrder(ctx, claim.OrderID)
	if err != nil {
		return nil, err
	}
	amount := claim.AmountCents

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txParties := s.partyRepo.WithTx(tx)
		txRepo := s.repo.WithTx(tx)
		txLedger := s.ledgerSvc.WithTx(tx)

		agentBefore, err := txParties.BalanceOf(ctx, claim.AgentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent balance")
		}
		buyerBefore, err := txParties.BalanceOf(ctx, order.BuyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer balance")
		}

		// The guarded flip serializes racing refunds on the same claim.
		if err := txRepo.TransitionClaim(ctx, claim.ID, enums.ClaimStatusApproved, enums.ClaimStatusRefunded, map[string]any{
			"refunded_at": s.now(),
		}); err != nil {
			return err
		}

		if agentBefore < amount {
			if !s.cfg.AllowAgentOverdraft {
				return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "agent balance does not cover the refund")
			}
			logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"agent_id":      claim.AgentID.String(),
				"balance_cents": agentBefore,
				"refund_cents":  amount,
			})
			s.logg.Warn(logCtx, "refund overdraws the agent balance, proceeding by policy")
		}
		if err := txParties.DebitAllowingOverdraft(ctx, claim.AgentID, amount); err != nil {
			return err
		}
		if err := txParties.Credit(ctx, order.BuyerID, amount); err != nil {
			return err
		}

		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: claim.AgentID,
			ToPartyID:   order.BuyerID,
			AmountCents: amount,
			Kind:        string(enums.LedgerEntryKindClaimPayout),
			RelatedID:   claim.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout entry")
		}
		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: claim.AgentID,
			ToPartyID:   order.BuyerID,
			AmountCents: amount,
			Kind:        string(enums.LedgerEntryKindClaimPayout),
			RelatedID:   claim.ID,
			Memo:        true,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout view entry")
		}

		if err := txRepo.TransitionComplaint(ctx, claim.ComplaintID, enums.ComplaintStatusClaimFiled, enums.ComplaintStatusRefunded); err != nil {
			return err
		}

		if err := s.verifyBalance(ctx, txParties, claim.AgentID, agentBefore-amount); err != nil {
			return err
		}
		if err := s.verifyBalance(ctx, txParties, order.BuyerID, buyerBefore+amount); err != nil {
			return err
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClaimRefunded,
			AggregateType: enums.AggregateClaim,
			AggregateID:   claim.ID,
			Actor:         &outbox.ActorRef{PartyID: input.ActorID, Role: string(enums.PartyRoleInsurance)},
			Data: payloads.ClaimRefundedEvent{
				ClaimID:     claim.ID,
				OrderID:     order.ID,
				AgentID:     claim.AgentID,
				BuyerID:     order.BuyerID,
				AmountCents: amount,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"amount_cents": amount})
	s.logg.Info(logCtx, "claim refunded")

	return s.loadClaim(ctx, claim.ID)
}

// checkCoverageWindow compares the dispatch date against the subscription
// window. Out-of-window claims proceed with a warning unless the policy flag
// tightens the rule.
func (s *service) checkCoverageWindow(ctx context.Context, order *models.Order, sub *models.InsuranceSubscription) error {
	dispatched := order.DispatchedToCustomerAt
	if dispatched == nil {
		return nil
	}
	inWindow := !dispatched.Before(sub.StartDate) && !dispatched.After(sub.EndDate)
	if inWindow {
		return nil
	}
	if !s.cfg.AllowOutOfWindowClaims {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispatch date falls outside the coverage window")
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"dispatched_at":  dispatched,
		"coverage_start": sub.StartDate,
		"coverage_end":   sub.EndDate,
	})
	s.logg.Warn(logCtx, "dispatch date outside coverage window, allowing claim by policy")
	return nil
}

func (s *service) verifyBalance(ctx context.Context, repo parties.Repository, partyID uuid.UUID, want int64) error {
	got, err := repo.BalanceOf(ctx, partyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify balance")
	}
	if got != want {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"party_id":   partyID.String(),
			"want_cents": want,
			"got_cents":  got,
		})
		s.logg.Error(logCtx, "balance verification failed, aborting settlement", nil)
		return pkgerrors.New(pkgerrors.CodeIntegrity, "settlement verification failed")
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	complaint, err := s.repo.FindComplaint(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load complaint")
	}
	return complaint, nil
}

func (s *service) loadClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	claim, err := s.repo.FindClaim(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claim")
	}
	return claim, nil
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
