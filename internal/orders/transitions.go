package orders

import "github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"

// adminTransitions lists the statuses an administrator may move an order to.
// delivered and cancelled are terminal.
var adminTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
}

// CanTransition reports whether an administrative update from -> to is allowed.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range adminTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether a buyer may still cancel an order in status.
func CanCancel(status enums.OrderStatus) bool {
	return status.IsValid() && !status.IsTerminal()
}
