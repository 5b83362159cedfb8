package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/money"
)

// OrderItem snapshots the product at purchase time. ProductID becomes nil if
// the product is later deleted.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Product      *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL"`
	ProductName  string          `gorm:"column:product_name;not null"`
	ProductImage *string         `gorm:"column:product_image"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (o OrderItem) ItemTotal() decimal.Decimal {
	return money.LineTotal(o.UnitPrice, o.Quantity)
}
