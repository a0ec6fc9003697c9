package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/ledger"
	"github.com/agrimandi/agrimarket-backend/internal/orders"
	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/internal/products"
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

// Service executes purchase and cancellation as single atomic units: balances,
// stock, ledger entries and order state commit together or not at all.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error)
}

type service struct {
	tx          txRunner
	partyRepo   parties.Repository
	productRepo products.Repository
	orderRepo   orders.Repository
	ledgerSvc   ledger.Service
	deduper     *Deduper
	outboxSvc   outboxEmitter
	metrics     *metrics.SettlementMetrics
	logg        *logger.Logger
}

// NewService wires the settlement orchestrator.
func NewService(
	tx txRunner,
	partyRepo parties.Repository,
	productRepo products.Repository,
	orderRepo orders.Repository,
	ledgerSvc ledger.Service,
	deduper *Deduper,
	outboxSvc outboxEmitter,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if partyRepo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deduper == nil {
		return nil, fmt.Errorf("deduper required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		partyRepo:   partyRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		ledgerSvc:   ledgerSvc,
		deduper:     deduper,
		outboxSvc:   outboxSvc,
		metrics:     settlementMetrics,
		logg:        logg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	start := time.Now()
	order, err := s.placeOrder(ctx, input)
	s.metrics.ObserveOperation("place_order", outcomeLabel(err), time.Since(start))
	if err == nil {
		s.metrics.AddLedgerEntries(2)
	}
	return order, err
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	buyer, err := s.loadParty(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}
	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	total := product.UnitPriceCents * int64(input.Qty)

	release, err := s.deduper.Reserve(ctx, buyer.ID, product.ID, input.Qty, product.UnitPriceCents)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			release()
		}
	}()

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txParties := s.partyRepo.WithTx(tx)
		txProducts := s.productRepo.WithTx(tx)
		txOrders := s.orderRepo.WithTx(tx)
		txLedger := s.ledgerSvc.WithTx(tx)

		buyerBefore, err := txParties.BalanceOf(ctx, buyer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer balance")
		}
		sellerBefore, err := txParties.BalanceOf(ctx, product.SellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller balance")
		}

		if err := txParties.Debit(ctx, buyer.ID, total); err != nil {
			return err
		}
		if err := txParties.Credit(ctx, product.SellerID, total); err != nil {
			return err
		}
		if err := txProducts.DecrementStock(ctx, product.ID, input.Qty); err != nil {
			return err
		}

		order = &models.Order{
			ProductID:      product.ID,
			BuyerID:        buyer.ID,
			SellerID:       product.SellerID,
			Qty:            input.Qty,
			UnitPriceCents: product.UnitPriceCents,
			TotalCents:     total,
			Status:         enums.OrderStatusPending,
		}
		if err := txOrders.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: buyer.ID,
			ToPartyID:   product.SellerID,
			AmountCents: total,
			Kind:        string(enums.LedgerEntryKindPurchase),
			RelatedID:   order.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase entry")
		}
		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: buyer.ID,
			ToPartyID:   product.SellerID,
			AmountCents: total,
			Kind:        string(enums.LedgerEntryKindSaleCredit),
			RelatedID:   order.ID,
			Memo:        true,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sale credit entry")
		}

		if err := s.verifyBalance(ctx, txParties, buyer.ID, buyerBefore-total); err != nil {
			return err
		}
		if err := s.verifyBalance(ctx, txParties, product.SellerID, sellerBefore+total); err != nil {
			return err
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{PartyID: buyer.ID, Role: string(buyer.Role)},
			Data: payloads.OrderPlacedEvent{
				OrderID:    order.ID,
				BuyerID:    buyer.ID,
				SellerID:   product.SellerID,
				ProductID:  product.ID,
				Qty:        input.Qty,
				TotalCents: total,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	committed = true

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"buyer_id":    buyer.ID.String(),
		"seller_id":   product.SellerID.String(),
		"total_cents": total,
	})
	s.logg.Info(logCtx, "order placed")
	return order, nil
}

func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	start := time.Now()
	order, err := s.cancelOrder(ctx, input)
	s.metrics.ObserveOperation("cancel_order", outcomeLabel(err), time.Since(start))
	if err == nil {
		s.metrics.AddLedgerEntries(2)
	}
	return order, err
}

func (s *service) cancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already terminal").
			WithDetails(map[string]string{"status": string(order.Status)})
	}
	if !s.mayCancel(order, input.ActorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor may not cancel this order")
	}

	refund := order.TotalCents
	var metadata json.RawMessage
	if input.Reason != "" {
		raw, marshalErr := json.Marshal(map[string]string{"reason": input.Reason})
		if marshalErr != nil {
			return nil, marshalErr
		}
		metadata = raw
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txParties := s.partyRepo.WithTx(tx)
		txProducts := s.productRepo.WithTx(tx)
		txOrders := s.orderRepo.WithTx(tx)
		txLedger := s.ledgerSvc.WithTx(tx)

		buyerBefore, err := txParties.BalanceOf(ctx, order.BuyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer balance")
		}
		sellerBefore, err := txParties.BalanceOf(ctx, order.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller balance")
		}

		// The guarded flip serializes racing cancels; the loser aborts here
		// with zero side effects.
		if err := txOrders.TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": time.Now(),
		}); err != nil {
			return err
		}

		if err := txParties.Credit(ctx, order.BuyerID, refund); err != nil {
			return err
		}
		// The seller may have spent the proceeds already; the compensating
		// debit still has to land, so it is allowed to overdraw.
		if err := txParties.DebitAllowingOverdraft(ctx, order.SellerID, refund); err != nil {
			return err
		}
		if err := txProducts.RestoreStock(ctx, order.ProductID, order.Qty); err != nil {
			return err
		}

		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: order.SellerID,
			ToPartyID:   order.BuyerID,
			AmountCents: refund,
			Kind:        string(enums.LedgerEntryKindOrderRefund),
			RelatedID:   order.ID,
			Metadata:    metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund entry")
		}
		if _, err := txLedger.RecordEntry(ctx, ledger.RecordEntryInput{
			FromPartyID: order.SellerID,
			ToPartyID:   order.BuyerID,
			AmountCents: refund,
			Kind:        string(enums.LedgerEntryKindOrderRefund),
			RelatedID:   order.ID,
			Memo:        true,
			Metadata:    metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund view entry")
		}

		if err := txOrders.DetachCustody(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach custody")
		}

		if err := s.verifyBalance(ctx, txParties, order.BuyerID, buyerBefore+refund); err != nil {
			return err
		}
		if err := s.verifyBalance(ctx, txParties, order.SellerID, sellerBefore-refund); err != nil {
			return err
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{PartyID: input.ActorID},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				RefundCents: refund,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"refund_cents": refund})
	s.logg.Info(logCtx, "order cancelled")

	return s.orderRepo.FindByID(ctx, order.ID)
}

// mayCancel admits the order's buyer, seller or the assigned carrier.
func (s *service) mayCancel(order *models.Order, actorID uuid.UUID) bool {
	if order.BuyerID == actorID || order.SellerID == actorID {
		return true
	}
	return order.LogisticsID != nil && *order.LogisticsID == actorID
}

// verifyBalance re-reads a balance before commit and aborts the transaction
// on any drift. The caller sees an opaque integrity failure; the full detail
// goes to the log.
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

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
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
