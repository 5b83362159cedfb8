package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

// Service exposes catalog read paths and admin product management.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// CreateCategoryInput holds the payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description *string
	Image       *string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID  *uuid.UUID
	Name        string
	Slug        string
	Description *string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Stock       int
	Image       *string
	Status      enums.ProductStatus
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	CategoryID  *uuid.UUID
	Name        *string
	Slug        *string
	Description *string
	Price       *decimal.Decimal
	Discount    *decimal.Decimal
	Stock       *int
	Image       *string
	Status      *enums.ProductStatus
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

var maxDiscount = decimal.NewFromInt(100)

// NewService constructs a catalog service instance.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	slug, err := resolveSlug(input.Slug, name)
	if err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		Image:       input.Image,
	}
	if _, err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category name or slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert category")
	}
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}
	rows, next, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewProductDTO(&rows[i]))
	}
	return &ProductListResult{Products: out, NextCursor: next}, nil
}

// GetProduct returns a product. Unless includeInactive is set, products that
// are not active are reported as missing.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !includeInactive && p.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := NewProductDTO(p)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Status == "" {
		input.Status = enums.ProductStatusDraft
	}
	if err := validatePricing(input.Price, input.Discount, input.Stock, input.Status); err != nil {
		return nil, err
	}
	slug, err := resolveSlug(input.Slug, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		Price:       input.Price.Round(2),
		Discount:    input.Discount.Round(2),
		Stock:       input.Stock,
		Image:       input.Image,
		Status:      input.Status,
	}
	if _, err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists").
				WithDetails(map[string]any{"slug": slug})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

// UpdateProduct applies a partial update under a row lock so concurrent stock
// writers never interleave with an admin edit.
func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		locked, err := txRepo.LockByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}
		p, ok := locked[id]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
			}
			p.Name = name
		}
		if input.Slug != nil {
			slug, err := resolveSlug(*input.Slug, p.Name)
			if err != nil {
				return err
			}
			p.Slug = slug
		}
		if input.Description != nil {
			p.Description = input.Description
		}
		if input.Image != nil {
			p.Image = input.Image
		}
		if input.Price != nil {
			p.Price = input.Price.Round(2)
		}
		if input.Discount != nil {
			p.Discount = input.Discount.Round(2)
		}
		if input.Stock != nil {
			p.Stock = *input.Stock
		}
		if input.Status != nil {
			p.Status = *input.Status
		}
		if input.CategoryID != nil {
			if err := s.ensureCategoryWith(ctx, txRepo, input.CategoryID); err != nil {
				return err
			}
			p.CategoryID = input.CategoryID
		}
		if err := validatePricing(p.Price, p.Discount, p.Stock, p.Status); err != nil {
			return err
		}

		if _, err := txRepo.UpdateProduct(ctx, p); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists").
					WithDetails(map[string]any{"slug": p.Slug})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewProductDTO(updated)
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteProduct(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	return s.ensureCategoryWith(ctx, s.repo, id)
}

func (s *service) ensureCategoryWith(ctx context.Context, repo *Repository, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := repo.CategoryExists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").
			WithDetails(map[string]any{"category_id": id.String()})
	}
	return nil
}

func validatePricing(price, discount decimal.Decimal, stock int, status enums.ProductStatus) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if discount.IsNegative() || discount.GreaterThan(maxDiscount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product status").
			WithDetails(map[string]any{"status": status.String()})
	}
	return nil
}

func resolveSlug(explicit, name string) (string, error) {
	source := strings.TrimSpace(explicit)
	if source == "" {
		source = name
	}
	slug := Slugify(source)
	if slug == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "slug could not be derived from name")
	}
	return slug, nil
}
