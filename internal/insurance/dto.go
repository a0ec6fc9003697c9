package insurance

import (
	"time"

	"github.com/google/uuid"
)

// SubscribeInput opens a subscription against a policy template.
type SubscribeInput struct {
	SubscriberID uuid.UUID  `json:"subscriber_id" validate:"required"`
	PolicyID     uuid.UUID  `json:"policy_id" validate:"required"`
	StartDate    time.Time  `json:"start_date" validate:"required"`
	EndDate      time.Time  `json:"end_date" validate:"required"`
	Tier         string     `json:"tier" validate:"required,oneof=standard premium"`
	AgentID      *uuid.UUID `json:"agent_id,omitempty"`
}

// CancelSubscriptionInput ends the subscriber's active subscription with a
// prorated refund.
type CancelSubscriptionInput struct {
	SubscriberID uuid.UUID `json:"subscriber_id" validate:"required"`
}
