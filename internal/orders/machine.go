package orders

import "github.com/agrimandi/agrimarket-backend/pkg/enums"

// transitions is the custody state machine. Every non-terminal state may also
// move to cancelled; that arc is handled by the settlement orchestrator
// because it must fire the compensating refund in the same transaction.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusShippedToLogistics,
	},
	enums.OrderStatusShippedToLogistics: {
		enums.OrderStatusShipped,
		enums.OrderStatusDispatchedToColdStore,
		enums.OrderStatusDispatchedToCustomer,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDispatchedToColdStore,
		enums.OrderStatusDispatchedToCustomer,
	},
	enums.OrderStatusDispatchedToColdStore: {
		enums.OrderStatusInColdStorage,
	},
	enums.OrderStatusInColdStorage: {
		enums.OrderStatusShippedToLogistics,
	},
	enums.OrderStatusDispatchedToCustomer: {
		enums.OrderStatusDelivered,
	},
}

// CanTransition reports whether from→to is a legal custody move. Terminal
// states reject everything, including repeat cancels.
func CanTransition(from, to enums.OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStates returns the legal custody targets from the given state, not
// counting the always-available cancel arc.
func NextStates(from enums.OrderStatus) []enums.OrderStatus {
	if from.IsTerminal() {
		return nil
	}
	return transitions[from]
}
