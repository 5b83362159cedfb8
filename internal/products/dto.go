package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
)

// CategoryDTO is the public category payload.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Image       *string   `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID              uuid.UUID       `json:"id"`
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Description     *string         `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Stock           int             `json:"stock"`
	InStock         bool            `json:"in_stock"`
	Image           *string         `json:"image,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewCategoryDTO(c *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		CreatedAt:   c.CreatedAt,
	}
}

// NewProductDTO builds a DTO from the persisted model. Money fields are
// normalised to two decimal places.
func NewProductDTO(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:              p.ID,
		CategoryID:      p.CategoryID,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Price:           p.Price.Round(2),
		Discount:        p.Discount.Round(2),
		DiscountedPrice: p.DiscountedPrice(),
		Stock:           p.Stock,
		InStock:         p.IsInStock(),
		Image:           p.Image,
		Status:          p.Status.String(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
