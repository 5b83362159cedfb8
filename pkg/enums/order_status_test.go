package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("shipped")
	if err != nil || got != OrderStatusShipped {
		t.Fatalf("expected shipped, got %q err=%v", got, err)
	}
	if _, err := ParseOrderStatus("canceled"); err == nil {
		t.Fatalf("expected unknown spelling to be rejected")
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:   false,
		OrderStatusConfirmed: false,
		OrderStatusShipped:   false,
		OrderStatusDelivered: true,
		OrderStatusCancelled: true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Fatalf("status %s terminal=%v, want %v", status, status.IsTerminal(), want)
		}
	}
}

func TestParseNormalizesInput(t *testing.T) {
	if got, err := ParsePaymentStatus("  PAID "); err != nil || got != PaymentStatusPaid {
		t.Fatalf("expected paid, got %q err=%v", got, err)
	}
	if got, err := ParseRole("Admin"); err != nil || got != RoleAdmin {
		t.Fatalf("expected admin, got %q err=%v", got, err)
	}
	if _, err := ParseProductStatus("archived"); err == nil {
		t.Fatalf("expected unknown product status to be rejected")
	}
	if Role("root").IsValid() || !ProductStatusOutOfStock.IsValid() {
		t.Fatalf("unexpected validity result")
	}
}
