package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
)

// Order is the immutable result of a checkout. Amounts are fixed at creation.
// ShippingAddress is a live reference: later edits to the address are visible
// through the order.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ShippingAddressID *uuid.UUID          `gorm:"column:shipping_address_id;type:uuid"`
	ShippingAddress   *Address            `gorm:"foreignKey:ShippingAddressID;constraint:OnDelete:SET NULL"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Tax               decimal.Decimal     `gorm:"column:tax;type:numeric(10,2);not null"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	Notes             *string             `gorm:"column:notes"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
