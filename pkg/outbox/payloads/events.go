package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
)

// OrderLine is one purchased product as captured at checkout. Amounts are
// decimal strings with two places.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

// OrderPlacedEvent is emitted when checkout converts a cart into an order.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      uuid.UUID   `json:"user_id"`
	Subtotal    string      `json:"subtotal"`
	Tax         string      `json:"tax"`
	Total       string      `json:"total"`
	Lines       []OrderLine `json:"lines"`
}

// StockRestore records stock handed back to a product on cancellation.
type StockRestore struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// OrderCancelledEvent is emitted when a buyer cancels an order.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Restocked      []StockRestore    `json:"restocked"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// OrderStatusChangedEvent is emitted on administrative status updates.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}
