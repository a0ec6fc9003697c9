package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderPlaced        OutboxEventType = "order.placed"
	EventOrderCancelled     OutboxEventType = "order.cancelled"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventPolicySubscribed   OutboxEventType = "policy.subscribed"
	EventPolicyCancelled    OutboxEventType = "policy.cancelled"
	EventComplaintFiled     OutboxEventType = "complaint.filed"
	EventClaimRefunded      OutboxEventType = "claim.refunded"
)

// OutboxAggregateType enumerates the aggregates events attach to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateComplaint    OutboxAggregateType = "complaint"
	AggregateClaim        OutboxAggregateType = "claim"
)
