package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
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

// Service walks orders through the custody chain. Placement and cancellation
// live in the settlement orchestrator because they move money; everything
// here only moves goods.
type Service interface {
	ShipToLogistics(ctx context.Context, input ShipToLogisticsInput) (*models.Order, error)
	DispatchVehicle(ctx context.Context, input DispatchVehicleInput) (*models.Order, error)
	DriverDispatch(ctx context.Context, input DriverDispatchInput) (*models.Order, error)
	ColdStorageReceive(ctx context.Context, input ColdStorageReceiveInput) (*models.Order, error)
	Redispatch(ctx context.Context, input RedispatchInput) (*models.Order, error)
	MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	partyRepo parties.Repository
	outboxSvc outboxEmitter
	logg      *logger.Logger
}

// NewService wires the order custody service.
func NewService(tx txRunner, repo Repository, partyRepo parties.Repository, outboxSvc outboxEmitter, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if partyRepo == nil {
		return nil, fmt.Errorf("party repository required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		partyRepo: partyRepo,
		outboxSvc: outboxSvc,
		logg:      logg,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.loadOrder(ctx, id)
}

func (s *service) ShipToLogistics(ctx context.Context, input ShipToLogisticsInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller may dispatch to logistics")
	}
	if err := s.requireRole(ctx, input.LogisticsID, enums.PartyRoleLogistics); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{
		"logistics_id":            input.LogisticsID,
		"shipped_to_logistics_at": now,
	}
	return s.transition(ctx, order, enums.OrderStatusShippedToLogistics, updates, input.ActorID, nil)
}

func (s *service) DispatchVehicle(ctx context.Context, input DispatchVehicleInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.LogisticsID == nil || *order.LogisticsID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned carrier may dispatch a vehicle")
	}

	vehicleRef := input.VehicleRef
	assignment := &models.CustodyAssignment{
		OrderID:    order.ID,
		CarrierID:  input.ActorID,
		DriverID:   input.DriverID,
		VehicleRef: &vehicleRef,
	}
	return s.transition(ctx, order, enums.OrderStatusShipped, nil, input.ActorID, assignment)
}

func (s *service) DriverDispatch(ctx context.Context, input DriverDispatchInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCustodyActor(ctx, order, input.ActorID); err != nil {
		return nil, err
	}

	now := time.Now()
	switch input.Destination {
	case DestinationColdStorage:
		if input.ColdStorageID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coldstorage id is required for a cold-storage dispatch")
		}
		if err := s.requireRole(ctx, *input.ColdStorageID, enums.PartyRoleColdStorage); err != nil {
			return nil, err
		}
		updates := map[string]any{
			"coldstorage_id":           *input.ColdStorageID,
			"dispatched_to_storage_at": now,
		}
		return s.transition(ctx, order, enums.OrderStatusDispatchedToColdStore, updates, input.ActorID, nil)
	case DestinationCustomer:
		updates := map[string]any{
			"dispatched_to_customer_at": now,
		}
		return s.transition(ctx, order, enums.OrderStatusDispatchedToCustomer, updates, input.ActorID, nil)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispatch destination")
	}
}

func (s *service) ColdStorageReceive(ctx context.Context, input ColdStorageReceiveInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.ColdStorageID == nil || *order.ColdStorageID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned facility may confirm receipt")
	}

	updates := map[string]any{
		"in_coldstorage_at": time.Now(),
	}
	updated, err := s.transition(ctx, order, enums.OrderStatusInColdStorage, updates, input.ActorID, nil)
	if err != nil {
		return nil, err
	}
	// The vehicle leg ends at the facility door.
	if err := s.repo.DetachCustody(ctx, order.ID); err != nil {
		s.logg.Error(ctx, "detach custody after cold-storage receipt", err)
	}
	return updated, nil
}

func (s *service) Redispatch(ctx context.Context, input RedispatchInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.ColdStorageID == nil || *order.ColdStorageID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the holding facility may re-dispatch")
	}
	if err := s.requireRole(ctx, input.LogisticsID, enums.PartyRoleLogistics); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"logistics_id":            input.LogisticsID,
		"shipped_to_logistics_at": time.Now(),
	}
	return s.transition(ctx, order, enums.OrderStatusShippedToLogistics, updates, input.ActorID, nil)
}

func (s *service) MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.ActorID {
		if err := s.requireCustodyActor(ctx, order, input.ActorID); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{
		"delivered_at": time.Now(),
	}
	updated, err := s.transition(ctx, order, enums.OrderStatusDelivered, updates, input.ActorID, nil)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DetachCustody(ctx, order.ID); err != nil {
		s.logg.Error(ctx, "detach custody after delivery", err)
	}
	return updated, nil
}

// transition runs the guarded status flip, optional custody attach and the
// status-changed event as one transaction.
func (s *service) transition(ctx context.Context, order *models.Order, to enums.OrderStatus, updates map[string]any, actorID uuid.UUID, attach *models.CustodyAssignment) (*models.Order, error) {
	from := order.Status
	if !CanTransition(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]string{
				"from": string(from),
				"to":   string(to),
			})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.TransitionStatus(ctx, order.ID, from, to, updates); err != nil {
			return err
		}
		if attach != nil {
			if err := txRepo.AttachCustody(ctx, attach); err != nil {
				return err
			}
		}
		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{PartyID: actorID},
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    string(from),
				To:      string(to),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": to})
	s.logg.Info(logCtx, "order status changed")

	return s.loadOrder(ctx, order.ID)
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) requireRole(ctx context.Context, id uuid.UUID, role enums.PartyRole) error {
	party, err := s.partyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s party not found", role))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	if party.Role != role {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("party is not a %s", role))
	}
	return nil
}

// requireCustodyActor admits the assigned carrier or the driver on the live
// assignment.
func (s *service) requireCustodyActor(ctx context.Context, order *models.Order, actorID uuid.UUID) error {
	if order.LogisticsID != nil && *order.LogisticsID == actorID {
		return nil
	}
	assignment, err := s.repo.LiveAssignment(ctx, order.ID)
	if err == nil && assignment.DriverID != nil && *assignment.DriverID == actorID {
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load custody assignment")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "actor does not hold custody of this order")
}
