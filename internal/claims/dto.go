package claims

import "github.com/google/uuid"

// FileComplaintInput opens a complaint against a dispatched order.
type FileComplaintInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	FilerID uuid.UUID `json:"filer_id" validate:"required"`
	Reason  string    `json:"reason" validate:"required"`
}

// FileClaimInput turns an open complaint into a coverage claim by the seller.
type FileClaimInput struct {
	ComplaintID uuid.UUID  `json:"complaint_id" validate:"required"`
	SellerID    uuid.UUID  `json:"seller_id" validate:"required"`
	AgentID     *uuid.UUID `json:"agent_id,omitempty"`
}

// ApproveClaimInput accepts a pending claim.
type ApproveClaimInput struct {
	ClaimID uuid.UUID `json:"claim_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}

// RejectClaimInput declines a pending claim, releasing its coverage slice.
type RejectClaimInput struct {
	ClaimID uuid.UUID `json:"claim_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
	Reason  string    `json:"reason,omitempty"`
}

// ProcessRefundInput settles an approved claim agent→buyer.
type ProcessRefundInput struct {
	ClaimID uuid.UUID `json:"claim_id" validate:"required"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}
