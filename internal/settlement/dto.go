package settlement

import "github.com/google/uuid"

// PlaceOrderInput is a buyer's purchase request. The price is read from the
// catalog at placement, never from the caller.
type PlaceOrderInput struct {
	BuyerID   uuid.UUID `json:"buyer_id" validate:"required"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// CancelOrderInput reverses a placement. The actor must be the order's buyer,
// seller or assigned carrier.
type CancelOrderInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
	Reason  string    `json:"reason,omitempty"`
}
