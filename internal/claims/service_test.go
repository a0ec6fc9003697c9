package claims

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/insurance"
	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/internal/orders"
	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/config"
	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
	"github.com/agrimandi/agrimarket-backend/pkg/metrics"
	"github.com/agrimandi/agrimarket-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPartyRepo struct {
	parties  map[uuid.UUID]*models.Party
	balances map[uuid.UUID]int64
}

func newStubPartyRepo() *stubPartyRepo {
	return &stubPartyRepo{
		parties:  map[uuid.UUID]*models.Party{},
		balances: map[uuid.UUID]int64{},
	}
}

func (s *stubPartyRepo) add(role enums.PartyRole, balance int64) *models.Party {
	party := &models.Party{ID: uuid.New(), Role: role, BalanceCents: balance}
	s.parties[party.ID] = party
	s.balances[party.ID] = balance
	return party
}

func (s *stubPartyRepo) WithTx(tx *gorm.DB) parties.Repository { return s }

func (s *stubPartyRepo) Create(ctx context.Context, party *models.Party) error { return nil }

func (s *stubPartyRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	party, ok := s.parties[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return party, nil
}

func (s *stubPartyRepo) FindByEmail(ctx context.Context, email string) (*models.Party, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPartyRepo) FindByExternalRef(ctx context.Context, ref string) (*models.Party, error) {
	for _, party := range s.parties {
		if party.ExternalRef == ref {
			return party, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPartyRepo) FindAnyByRole(ctx context.Context, role enums.PartyRole) (*models.Party, error) {
	for _, party := range s.parties {
		if party.Role == role {
			return party, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPartyRepo) ListAll(ctx context.Context) ([]models.Party, error) { return nil, nil }

func (s *stubPartyRepo) BalanceOf(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, ok := s.parties[id]; !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return s.balances[id], nil
}

func (s *stubPartyRepo) Debit(ctx context.Context, id uuid.UUID, amountCents int64) error {
	if s.balances[id] < amountCents {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance does not cover debit")
	}
	s.balances[id] -= amountCents
	return nil
}

func (s *stubPartyRepo) DebitAllowingOverdraft(ctx context.Context, id uuid.UUID, amountCents int64) error {
	s.balances[id] -= amountCents
	return nil
}

func (s *stubPartyRepo) Credit(ctx context.Context, id uuid.UUID, amountCents int64) error {
	s.balances[id] += amountCents
	return nil
}

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) error { return nil }

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error {
	return nil
}

func (s *stubOrderRepo) AttachCustody(ctx context.Context, assignment *models.CustodyAssignment) error {
	return nil
}

func (s *stubOrderRepo) DetachCustody(ctx context.Context, orderID uuid.UUID) error { return nil }

func (s *stubOrderRepo) LiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.CustodyAssignment, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubInsuranceRepo struct {
	policy *models.PolicyTemplate
	active *models.InsuranceSubscription
}

func (s *stubInsuranceRepo) WithTx(tx *gorm.DB) insurance.Repository { return s }

func (s *stubInsuranceRepo) FindPolicy(ctx context.Context, id uuid.UUID) (*models.PolicyTemplate, error) {
	if s.policy == nil || s.policy.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.policy, nil
}

func (s *stubInsuranceRepo) CreateSubscription(ctx context.Context, sub *models.InsuranceSubscription) error {
	return nil
}

func (s *stubInsuranceRepo) FindSubscription(ctx context.Context, id uuid.UUID) (*models.InsuranceSubscription, error) {
	if s.active != nil && s.active.ID == id {
		return s.active, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInsuranceRepo) FindActiveBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*models.InsuranceSubscription, error) {
	if s.active != nil && s.active.SubscriberID == subscriberID && s.active.Status == enums.SubscriptionStatusActive {
		return s.active, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInsuranceRepo) TransitionSubscription(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, updates map[string]any) error {
	return nil
}

func (s *stubInsuranceRepo) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]models.InsuranceSubscription, error) {
	return nil, nil
}

// stubClaimsRepo keeps complaints and claims in memory with the same guarded
// transition semantics as the real repository.
type stubClaimsRepo struct {
	complaints map[uuid.UUID]*models.Complaint
	claims     map[uuid.UUID]*models.Claim
	consumed   int64
}

func newStubClaimsRepo() *stubClaimsRepo {
	return &stubClaimsRepo{
		complaints: map[uuid.UUID]*models.Complaint{},
		claims:     map[uuid.UUID]*models.Claim{},
	}
}

func (s *stubClaimsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubClaimsRepo) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == uuid.Nil {
		complaint.ID = uuid.New()
	}
	s.complaints[complaint.ID] = complaint
	return nil
}

func (s *stubClaimsRepo) FindComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	complaint, ok := s.complaints[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return complaint, nil
}

func (s *stubClaimsRepo) FindComplaintByOrder(ctx context.Context, orderID uuid.UUID) (*models.Complaint, error) {
	for _, complaint := range s.complaints {
		if complaint.OrderID == orderID {
			return complaint, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubClaimsRepo) TransitionComplaint(ctx context.Context, id uuid.UUID, from, to enums.ComplaintStatus) error {
	complaint, ok := s.complaints[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
	}
	if complaint.Status != from {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "complaint status changed concurrently")
	}
	complaint.Status = to
	return nil
}

func (s *stubClaimsRepo) CreateClaim(ctx context.Context, claim *models.Claim) error {
	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	s.claims[claim.ID] = claim
	return nil
}

func (s *stubClaimsRepo) FindClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	claim, ok := s.claims[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return claim, nil
}

func (s *stubClaimsRepo) FindClaimByComplaint(ctx context.Context, complaintID uuid.UUID) (*models.Claim, error) {
	for _, claim := range s.claims {
		if claim.ComplaintID == complaintID {
			return claim, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubClaimsRepo) TransitionClaim(ctx context.Context, id uuid.UUID, from, to enums.ClaimStatus, updates map[string]any) error {
	claim, ok := s.claims[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
	}
	if claim.Status != from {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "claim status changed concurrently")
	}
	claim.Status = to
	return nil
}

func (s *stubClaimsRepo) SumConsumedCoverage(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	return s.consumed, nil
}

type stubLedgerRepo struct {
	entries []*models.LedgerEntry
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return s }

func (s *stubLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLedgerRepo) ListByParty(ctx context.Context, partyID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (s *stubLedgerRepo) ListByRelatedID(ctx context.Context, relatedID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (s *stubLedgerRepo) SumPostedByParty(ctx context.Context, partyID uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubLedgerRepo) byStatus(status string) []*models.LedgerEntry {
	var out []*models.LedgerEntry
	for _, entry := range s.entries {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func dispatchedAt() time.Time {
	return time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc        Service
	repo       *stubClaimsRepo
	partyRepo  *stubPartyRepo
	orderRepo  *stubOrderRepo
	insRepo    *stubInsuranceRepo
	ledgerRepo *stubLedgerRepo
	outbox     *stubOutbox
	buyer      *models.Party
	seller     *models.Party
	agent      *models.Party
	order      *models.Order
	sub        *models.InsuranceSubscription
}

func newFixture(t *testing.T, cfg config.ClaimsConfig, now func() time.Time) *fixture {
	t.Helper()

	partyRepo := newStubPartyRepo()
	buyer := partyRepo.add(enums.PartyRoleBuyer, 0)
	seller := partyRepo.add(enums.PartyRoleSeller, 0)
	agent := partyRepo.add(enums.PartyRoleInsurance, 100_000)

	dispatched := dispatchedAt()
	order := &models.Order{
		ID:                     uuid.New(),
		ProductID:              uuid.New(),
		BuyerID:                buyer.ID,
		SellerID:               seller.ID,
		Qty:                    3,
		UnitPriceCents:         2000,
		TotalCents:             6000,
		Status:                 enums.OrderStatusDispatchedToCustomer,
		DispatchedToCustomerAt: &dispatched,
	}
	orderRepo := &stubOrderRepo{orders: map[uuid.UUID]*models.Order{order.ID: order}}

	agentID := agent.ID
	policy := &models.PolicyTemplate{
		ID:        uuid.New(),
		CreatorID: agent.ID,
	}
	sub := &models.InsuranceSubscription{
		ID:            uuid.New(),
		PolicyID:      policy.ID,
		SubscriberID:  seller.ID,
		AgentID:       &agentID,
		Tier:          enums.PolicyTierStandard,
		PremiumCents:  5000,
		CoverageCents: 100_000,
		StartDate:     dispatched.AddDate(0, 0, -5),
		EndDate:       dispatched.AddDate(0, 0, 5),
		Status:        enums.SubscriptionStatusActive,
	}
	insRepo := &stubInsuranceRepo{policy: policy, active: sub}

	repo := newStubClaimsRepo()
	ledgerRepo := &stubLedgerRepo{}
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	outboxStub := &stubOutbox{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	if now == nil {
		now = func() time.Time { return dispatched.Add(time.Hour) }
	}

	svc, err := NewService(
		stubTxRunner{},
		repo,
		orderRepo,
		partyRepo,
		insRepo,
		ledgerSvc,
		NewAgentResolver(partyRepo, logg),
		outboxStub,
		metrics.NewSettlementMetrics(nil),
		cfg,
		logg,
		now,
	)
	if err != nil {
		t.Fatalf("claims service: %v", err)
	}

	return &fixture{
		svc:        svc,
		repo:       repo,
		partyRepo:  partyRepo,
		orderRepo:  orderRepo,
		insRepo:    insRepo,
		ledgerRepo: ledgerRepo,
		outbox:     outboxStub,
		buyer:      buyer,
		seller:     seller,
		agent:      agent,
		order:      order,
		sub:        sub,
	}
}

func defaultClaimsConfig() config.ClaimsConfig {
	return config.ClaimsConfig{
		AllowOutOfWindowClaims: true,
		AllowAgentOverdraft:    true,
		ComplaintSLA:           24 * time.Hour,
	}
}

func (f *fixture) fileComplaint(t *testing.T) *models.Complaint {
	t.Helper()
	complaint, err := f.svc.FileComplaint(context.Background(), FileComplaintInput{
		OrderID: f.order.ID,
		FilerID: f.buyer.ID,
		Reason:  "half the crates spoiled",
	})
	if err != nil {
		t.Fatalf("file complaint: %v", err)
	}
	return complaint
}

func (f *fixture) fileClaim(t *testing.T, complaintID uuid.UUID) *models.Claim {
	t.Helper()
	claim, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaintID,
		SellerID:    f.seller.ID,
	})
	if err != nil {
		t.Fatalf("file claim: %v", err)
	}
	return claim
}

func TestFileComplaintCapturesSnapshot(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)

	complaint := f.fileComplaint(t)

	if complaint.Status != enums.ComplaintStatusOpen {
		t.Fatalf("expected open, got %s", complaint.Status)
	}
	if !complaint.SellerInsuredSnapshot {
		t.Fatalf("expected the insured snapshot set")
	}
	if complaint.SnapshotSubscriptionID == nil || *complaint.SnapshotSubscriptionID != f.sub.ID {
		t.Fatalf("expected the subscription snapshot recorded")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventComplaintFiled {
		t.Fatalf("expected a complaint filed event")
	}
}

func TestFileComplaintUninsuredSeller(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	f.insRepo.active = nil

	complaint := f.fileComplaint(t)
	if complaint.SellerInsuredSnapshot {
		t.Fatalf("expected the snapshot to record an uninsured seller")
	}
	if complaint.SnapshotSubscriptionID != nil {
		t.Fatalf("expected no subscription snapshot")
	}
}

func TestFileComplaintOnlyBuyer(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)

	_, err := f.svc.FileComplaint(context.Background(), FileComplaintInput{
		OrderID: f.order.ID,
		FilerID: f.seller.ID,
		Reason:  "wrong filer",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestFileComplaintNotDispatched(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	f.order.DispatchedToCustomerAt = nil

	_, err := f.svc.FileComplaint(context.Background(), FileComplaintInput{
		OrderID: f.order.ID,
		FilerID: f.buyer.ID,
		Reason:  "too early",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestFileComplaintWindowClosed(t *testing.T) {
	now := dispatchedAt().Add(25 * time.Hour)
	f := newFixture(t, defaultClaimsConfig(), func() time.Time { return now })

	_, err := f.svc.FileComplaint(context.Background(), FileComplaintInput{
		OrderID: f.order.ID,
		FilerID: f.buyer.ID,
		Reason:  "too late",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected a typed error")
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["sla"] != "24h0m0s" {
		t.Fatalf("expected the sla detail, got %v", typed.Details())
	}
}

func TestFileComplaintDuplicate(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	f.fileComplaint(t)

	_, err := f.svc.FileComplaint(context.Background(), FileComplaintInput{
		OrderID: f.order.ID,
		FilerID: f.buyer.ID,
		Reason:  "again",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFileClaimAssignsAgentAndLocksComplaint(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)

	claim := f.fileClaim(t, complaint.ID)

	if claim.Status != enums.ClaimStatusPending {
		t.Fatalf("expected pending, got %s", claim.Status)
	}
	if claim.AmountCents != f.order.TotalCents {
		t.Fatalf("expected the order total claimed, got %d", claim.AmountCents)
	}
	if claim.AgentID != f.agent.ID {
		t.Fatalf("expected the policy creator assigned, got %s", claim.AgentID)
	}
	if complaint.Status != enums.ComplaintStatusClaimFiled {
		t.Fatalf("expected the complaint locked, got %s", complaint.Status)
	}
}

func TestFileClaimNoActivePolicy(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	f.insRepo.active = nil

	_, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.seller.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFileClaimOnlySeller(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)

	_, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.buyer.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestFileClaimCoverageExceeded(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	f.repo.consumed = f.sub.CoverageCents - f.order.TotalCents + 1

	_, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.seller.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected a typed error")
	}
	details, ok := typed.Details().(map[string]int64)
	if !ok || details["coverage_cents"] != f.sub.CoverageCents {
		t.Fatalf("expected coverage details, got %v", typed.Details())
	}
}

func TestFileClaimComplaintAlreadyClaimed(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	f.fileClaim(t, complaint.ID)

	_, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.seller.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFileClaimOutOfWindowRejectedByFlag(t *testing.T) {
	cfg := defaultClaimsConfig()
	cfg.AllowOutOfWindowClaims = false
	f := newFixture(t, cfg, nil)
	complaint := f.fileComplaint(t)

	// Shift the coverage window so the dispatch date falls outside it.
	f.sub.StartDate = dispatchedAt().AddDate(0, 0, 1)
	f.sub.EndDate = dispatchedAt().AddDate(0, 0, 11)

	_, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.seller.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFileClaimOutOfWindowAllowedByFlag(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)

	f.sub.StartDate = dispatchedAt().AddDate(0, 0, 1)
	f.sub.EndDate = dispatchedAt().AddDate(0, 0, 11)

	if _, err := f.svc.FileClaim(context.Background(), FileClaimInput{
		ComplaintID: complaint.ID,
		SellerID:    f.seller.ID,
	}); err != nil {
		t.Fatalf("expected the claim to proceed with a warning, got %v", err)
	}
}

func TestApproveClaimOnlyAssignedAgent(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)

	_, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.seller.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	approved, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != enums.ClaimStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
}

func TestRejectClaimClosesComplaint(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)

	rejected, err := f.svc.RejectClaim(context.Background(), RejectClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != enums.ClaimStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if complaint.Status != enums.ComplaintStatusClosed {
		t.Fatalf("expected the complaint closed, got %s", complaint.Status)
	}
}

func TestProcessRefundSettlesAgentToBuyer(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)
	if _, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	refunded, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if refunded.Status != enums.ClaimStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if got := f.partyRepo.balances[f.agent.ID]; got != 94_000 {
		t.Fatalf("expected agent balance 94000, got %d", got)
	}
	if got := f.partyRepo.balances[f.buyer.ID]; got != 6000 {
		t.Fatalf("expected buyer balance 6000, got %d", got)
	}
	if complaint.Status != enums.ComplaintStatusRefunded {
		t.Fatalf("expected the complaint refunded, got %s", complaint.Status)
	}

	posted := f.ledgerRepo.byStatus(models.LedgerEntryStatusPosted)
	memos := f.ledgerRepo.byStatus(models.LedgerEntryStatusMemo)
	if len(posted) != 1 || posted[0].Kind != enums.LedgerEntryKindClaimPayout {
		t.Fatalf("expected one posted payout entry, got %+v", posted)
	}
	if len(memos) != 1 || memos[0].Kind != enums.LedgerEntryKindClaimPayout {
		t.Fatalf("expected one memo payout entry, got %+v", memos)
	}

	var refundEvents int
	for _, event := range f.outbox.events {
		if event.EventType == enums.EventClaimRefunded {
			refundEvents++
		}
	}
	if refundEvents != 1 {
		t.Fatalf("expected one claim refunded event, got %d", refundEvents)
	}
}

func TestProcessRefundRequiresApproval(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)

	_, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on a pending claim, got %v", err)
	}
}

func TestProcessRefundIdempotentOnRepeat(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)
	if _, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	_, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on a repeated refund, got %v", err)
	}
	if got := f.partyRepo.balances[f.buyer.ID]; got != 6000 {
		t.Fatalf("expected no double payout, got %d", got)
	}
}

func TestProcessRefundAgentOverdraft(t *testing.T) {
	f := newFixture(t, defaultClaimsConfig(), nil)
	f.partyRepo.balances[f.agent.ID] = 1000
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)
	if _, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("expected the overdraft allowed, got %v", err)
	}
	if got := f.partyRepo.balances[f.agent.ID]; got != -5000 {
		t.Fatalf("expected agent balance -5000, got %d", got)
	}
}

func TestProcessRefundOverdraftDisallowed(t *testing.T) {
	cfg := defaultClaimsConfig()
	cfg.AllowAgentOverdraft = false
	f := newFixture(t, cfg, nil)
	f.partyRepo.balances[f.agent.ID] = 1000
	complaint := f.fileComplaint(t)
	claim := f.fileClaim(t, complaint.ID)
	if _, err := f.svc.ApproveClaim(context.Background(), ApproveClaimInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := f.svc.ProcessRefund(context.Background(), ProcessRefundInput{
		ClaimID: claim.ID,
		ActorID: f.agent.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := f.partyRepo.balances[f.buyer.ID]; got != 0 {
		t.Fatalf("expected no payout, got %d", got)
	}
}
