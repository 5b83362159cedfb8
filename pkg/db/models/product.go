package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/money"
)

// Product is a sellable catalog entry. Stock is the single source of truth for
// availability and never drops below zero.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID  *uuid.UUID          `gorm:"column:category_id;type:uuid;index"`
	Category    *Category           `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
	Name        string              `gorm:"column:name;not null"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex:ux_products_slug"`
	Description *string             `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	Discount    decimal.Decimal     `gorm:"column:discount;type:numeric(5,2);not null;default:0"`
	Stock       int                 `gorm:"column:stock;not null;default:0;check:chk_products_stock_non_negative,stock >= 0"`
	Image       *string             `gorm:"column:image"`
	Status      enums.ProductStatus `gorm:"column:status;not null;default:'draft'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// DiscountedPrice is the price a buyer pays right now.
func (p Product) DiscountedPrice() decimal.Decimal {
	return money.ApplyDiscount(p.Price, p.Discount)
}

func (p Product) IsInStock() bool {
	return p.Stock > 0 && p.Status == enums.ProductStatusActive
}
