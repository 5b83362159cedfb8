package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

// Service is the cart engine. Every mutation runs in one transaction and locks
// rows in the order cart, lines, products.
type Service interface {
	// View returns the caller's cart. It creates an empty cart on first use.
	View(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (*ClearResult, error)
}

// AddItemInput is the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=10000"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	carts    CartRepository
	items    ItemRepository
	products *product.Repository
	tx       txRunner
}

// NewService constructs the cart engine.
func NewService(carts CartRepository, items ItemRepository, products *product.Repository, tx txRunner) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("cart item repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{carts: carts, items: items, products: products, tx: tx}, nil
}

func (s *service) View(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		view, err = s.render(ctx, tx, cart)
		return err
	})
	return view, err
}

// Add puts quantity more units of a product into the cart. The combined line
// quantity must fit the locked stock or nothing changes.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}

	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		items := s.items.WithTx(tx)
		existing, err := items.LockForProduct(ctx, cart.ID, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart line")
		}
		p, err := s.products.WithTx(tx).LockActiveByID(ctx, input.ProductID)
		if err != nil {
			return err
		}

		held := 0
		if existing != nil {
			held = existing.Quantity
		}
		if input.Quantity > p.Stock-held {
			requested := math.MaxInt
			if input.Quantity <= math.MaxInt-held {
				requested = input.Quantity + held
			}
			return product.InsufficientStock(p, requested)
		}
		newTotal := held + input.Quantity

		if existing != nil {
			err = items.UpdateQuantity(ctx, existing.ID, newTotal)
		} else {
			err = items.Create(ctx, &models.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: newTotal})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}
		if err := s.carts.WithTx(tx).Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		view, err = s.render(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateItem replaces the quantity of a line in the caller's cart.
func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if cart == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		items := s.items.WithTx(tx)
		item, err := items.LockByID(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart line")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		p, err := s.products.WithTx(tx).LockActiveByID(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if quantity > p.Stock {
			return product.InsufficientStock(p, quantity)
		}
		if err := items.UpdateQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		if err := s.carts.WithTx(tx).Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		view, err = s.render(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem deletes a line. Removing a line that is not there is not an error.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		removed, err := s.items.WithTx(tx).Delete(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if removed > 0 {
			if err := s.carts.WithTx(tx).Touch(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
			}
		}
		view, err = s.render(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Clear empties the cart. A user without a cart clears zero lines.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*ClearResult, error) {
	result := &ClearResult{Cleared: true}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).LockByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if cart == nil {
			return nil
		}
		removed, err := s.items.WithTx(tx).DeleteAll(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		result.Count = int(removed)
		if removed > 0 {
			if err := s.carts.WithTx(tx).Touch(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) render(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*CartDTO, error) {
	rows, err := s.items.WithTx(tx).ListWithProducts(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	return NewCartDTO(cart, rows), nil
}
