package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nikul30701/E-Commerce-Plateform/internal/addresses"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
)

// OrderFilters narrow an order listing. UserID is always set for buyers.
type OrderFilters struct {
	UserID        *uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// OrderItemDTO is the purchase-time snapshot of one line.
type OrderItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	ProductImage *string         `json:"product_image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	ItemTotal    decimal.Decimal `json:"item_total"`
}

// OrderDTO is the full order payload.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          uuid.UUID             `json:"user_id"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Tax             decimal.Decimal       `json:"tax"`
	Total           decimal.Decimal       `json:"total"`
	Notes           *string               `json:"notes,omitempty"`
	ShippingAddress *addresses.AddressDTO `json:"shipping_address,omitempty"`
	Items           []OrderItemDTO        `json:"items"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// OrderSummary is one row of an order listing.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal     `json:"total"`
	TotalItems    int                 `json:"total_items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// CancelResult is returned by a successful cancellation.
type CancelResult struct {
	ID     uuid.UUID         `json:"id"`
	Status enums.OrderStatus `json:"status"`
}

// NewOrderDTO maps a persisted order, including preloaded items and address.
func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Subtotal:      order.Subtotal.Round(2),
		Tax:           order.Tax.Round(2),
		Total:         order.Total.Round(2),
		Notes:         order.Notes,
		Items:         make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if order.ShippingAddress != nil {
		addr := addresses.NewAddressDTO(order.ShippingAddress)
		dto.ShippingAddress = &addr
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			UnitPrice:    item.UnitPrice.Round(2),
			Quantity:     item.Quantity,
			ItemTotal:    item.ItemTotal().Round(2),
		})
	}
	return dto
}

func newOrderSummary(order *models.Order) OrderSummary {
	total := 0
	for _, item := range order.Items {
		total += item.Quantity
	}
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total.Round(2),
		TotalItems:    total,
		CreatedAt:     order.CreatedAt,
	}
}
