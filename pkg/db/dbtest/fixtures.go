package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
)

// ProductOption customises a product fixture.
type ProductOption func(*models.Product)

func WithDiscount(percent string) ProductOption {
	return func(p *models.Product) { p.Discount = decimal.RequireFromString(percent) }
}

func WithStatus(status enums.ProductStatus) ProductOption {
	return func(p *models.Product) { p.Status = status }
}

// CreateProduct inserts an active product with the given price and stock.
func CreateProduct(t *testing.T, client *db.Client, name, price string, stock int, opts ...ProductOption) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:   name,
		Slug:   name + "-" + uuid.NewString()[:8],
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: enums.ProductStatusActive,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := client.DB().Create(p).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

// ReloadProduct reads the product row back from the database.
func ReloadProduct(t *testing.T, client *db.Client, id uuid.UUID) *models.Product {
	t.Helper()
	var p models.Product
	if err := client.DB().First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product %s: %v", id, err)
	}
	return &p
}

// CreateAddress inserts an address for userID.
func CreateAddress(t *testing.T, client *db.Client, userID uuid.UUID, isDefault bool) *models.Address {
	t.Helper()
	a := &models.Address{
		UserID:    userID,
		FullName:  "Ada Buyer",
		Street:    "1 Market St",
		City:      "Springfield",
		State:     "IL",
		Zipcode:   "62701",
		Country:   "US",
		Phone:     "+15550100",
		IsDefault: isDefault,
	}
	if err := client.DB().Create(a).Error; err != nil {
		t.Fatalf("create address: %v", err)
	}
	return a
}
