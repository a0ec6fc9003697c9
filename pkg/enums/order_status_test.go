package enums

import "testing"

func TestParseOrderStatusNormalizes(t *testing.T) {
	cases := map[string]OrderStatus{
		"pending":                   OrderStatusPending,
		"shipped_to_logistics":      OrderStatusShippedToLogistics,
		"Shipped To Logistics":      OrderStatusShippedToLogistics,
		"shippedtologistics":        OrderStatusShippedToLogistics,
		"dispatched-to-coldstorage": OrderStatusDispatchedToColdStore,
		"IN_COLDSTORAGE":            OrderStatusInColdStorage,
		"Delivered":                 OrderStatusDelivered,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("ParseOrderStatus(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseOrderStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseOrderStatusRejectsUnknown(t *testing.T) {
	if _, err := ParseOrderStatus("teleported"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestIsTerminal(t *testing.T) {
	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("delivered and cancelled must be terminal")
	}
	if OrderStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
}
