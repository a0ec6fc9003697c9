package orders

import "github.com/google/uuid"

// ShipToLogisticsInput hands the goods from the seller to a carrier.
type ShipToLogisticsInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	ActorID     uuid.UUID `json:"actor_id" validate:"required"`
	LogisticsID uuid.UUID `json:"logistics_id" validate:"required"`
}

// DispatchVehicleInput records the carrier loading the goods onto a vehicle.
type DispatchVehicleInput struct {
	OrderID    uuid.UUID  `json:"order_id" validate:"required"`
	ActorID    uuid.UUID  `json:"actor_id" validate:"required"`
	DriverID   *uuid.UUID `json:"driver_id,omitempty"`
	VehicleRef string     `json:"vehicle_ref" validate:"required"`
}

// Driver dispatch destinations.
const (
	DestinationColdStorage = "coldstorage"
	DestinationCustomer    = "customer"
)

// DriverDispatchInput routes the loaded vehicle toward cold storage or the
// customer.
type DriverDispatchInput struct {
	OrderID       uuid.UUID  `json:"order_id" validate:"required"`
	ActorID       uuid.UUID  `json:"actor_id" validate:"required"`
	Destination   string     `json:"destination" validate:"required,oneof=coldstorage customer"`
	ColdStorageID *uuid.UUID `json:"coldstorage_id,omitempty"`
}

// ColdStorageReceiveInput confirms the facility took custody.
type ColdStorageReceiveInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}

// RedispatchInput moves goods out of cold storage onto the next logistics leg.
type RedispatchInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	ActorID     uuid.UUID `json:"actor_id" validate:"required"`
	LogisticsID uuid.UUID `json:"logistics_id" validate:"required"`
}

// MarkDeliveredInput closes the custody chain at the customer.
type MarkDeliveredInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}
