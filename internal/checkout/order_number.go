package checkout

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
)

const (
	orderNumberPrefix   = "ORD-"
	orderNumberAttempts = 3
	orderNumberSavePt   = "order_number"
)

// NewOrderNumber returns "ORD-" followed by 8 random lowercase hex characters.
func NewOrderNumber() string {
	return orderNumberPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "ux_orders_order_number") ||
		db.IsUniqueViolation(err, "orders.order_number")
}
