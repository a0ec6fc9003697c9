package enums

import (
	"fmt"
	"strings"
)

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending               OrderStatus = "pending"
	OrderStatusShippedToLogistics    OrderStatus = "shipped_to_logistics"
	OrderStatusShipped               OrderStatus = "shipped"
	OrderStatusDispatchedToColdStore OrderStatus = "dispatched_to_coldstorage"
	OrderStatusInColdStorage         OrderStatus = "in_coldstorage"
	OrderStatusDispatchedToCustomer  OrderStatus = "dispatched_to_customer"
	OrderStatusDelivered             OrderStatus = "delivered"
	OrderStatusCancelled             OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusShippedToLogistics,
	OrderStatusShipped,
	OrderStatusDispatchedToColdStore,
	OrderStatusInColdStorage,
	OrderStatusDispatchedToCustomer,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValid reports whether the value matches the canonical order status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into OrderStatus. Legacy records carry
// free-text variants ("shippedtologistics", "Shipped To Logistics"); parsing
// normalizes case and separators once so nothing downstream string-matches.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(value)
	for _, sep := range []string{" ", "-", "_"} {
		normalized = strings.ReplaceAll(normalized, sep, "")
	}
	for _, candidate := range validOrderStatuses {
		flat := strings.ReplaceAll(string(candidate), "_", "")
		if flat == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
