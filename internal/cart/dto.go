package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/money"
)

// ItemDTO is one cart line priced at the product's current discounted price.
type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage *string         `json:"product_image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	InStock      bool            `json:"in_stock"`
	Available    int             `json:"available"`
}

// CartDTO is the cart view with derived totals.
type CartDTO struct {
	ID         uuid.UUID       `json:"id"`
	Items      []ItemDTO       `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ClearResult reports how many lines a clear removed.
type ClearResult struct {
	Cleared bool `json:"cleared"`
	Count   int  `json:"count"`
}

// NewCartDTO prices lines with current product data. Lines whose product has
// disappeared are skipped.
func NewCartDTO(cart *models.Cart, items []models.CartItem) *CartDTO {
	dto := &CartDTO{
		ID:         cart.ID,
		Items:      make([]ItemDTO, 0, len(items)),
		TotalPrice: decimal.Zero,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		unit := item.Product.DiscountedPrice()
		line := money.LineTotal(unit, item.Quantity)
		dto.Items = append(dto.Items, ItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.Product.Name,
			ProductImage: item.Product.Image,
			UnitPrice:    unit.Round(2),
			Quantity:     item.Quantity,
			LineTotal:    line.Round(2),
			InStock:      item.Product.IsInStock(),
			Available:    item.Product.Stock,
		})
		dto.TotalItems += item.Quantity
		dto.TotalPrice = dto.TotalPrice.Add(line)
	}
	dto.TotalPrice = dto.TotalPrice.Round(2)
	return dto
}
