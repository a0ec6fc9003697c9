package payloads

import "github.com/google/uuid"

// OrderPlacedEvent notifies buyer and seller after a purchase commits.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
	TotalCents int64     `json:"total_cents"`
}

// OrderCancelledEvent notifies both sides after a cancellation refund commits.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	RefundCents int64     `json:"refund_cents"`
}

// OrderStatusChangedEvent reports a custody transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

// PolicySubscribedEvent reports a new insurance subscription.
type PolicySubscribedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	SubscriberID   uuid.UUID `json:"subscriber_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	PremiumCents   int64     `json:"premium_cents"`
}

// PolicyCancelledEvent reports a subscription cancellation and its refund.
type PolicyCancelledEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	SubscriberID   uuid.UUID `json:"subscriber_id"`
	RefundCents    int64     `json:"refund_cents"`
}

// ComplaintFiledEvent reports a new complaint against an order.
type ComplaintFiledEvent struct {
	ComplaintID uuid.UUID `json:"complaint_id"`
	OrderID     uuid.UUID `json:"order_id"`
	FilerID     uuid.UUID `json:"filer_id"`
}

// ClaimRefundedEvent reports a settled claim payout.
type ClaimRefundedEvent struct {
	ClaimID     uuid.UUID `json:"claim_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AgentID     uuid.UUID `json:"agent_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	AmountCents int64     `json:"amount_cents"`
}
