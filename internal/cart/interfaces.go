package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
)

// CartRepository defines persistence for the cart row itself.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LockByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
}

// ItemRepository defines persistence for cart lines.
type ItemRepository interface {
	WithTx(tx *gorm.DB) ItemRepository
	ListWithProducts(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	LockForProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	LockByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	LockAll(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	Delete(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	DeleteAll(ctx context.Context, cartID uuid.UUID) (int64, error)
}
