package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
)

// CartItemRepository manages persistent cart lines.
type CartItemRepository struct {
	db *gorm.DB
}

// NewCartItemRepository binds the repository to the provided DB handle.
func NewCartItemRepository(db *gorm.DB) *CartItemRepository {
	return &CartItemRepository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *CartItemRepository) WithTx(tx *gorm.DB) ItemRepository {
	if tx == nil {
		return r
	}
	return &CartItemRepository{db: tx}
}

// ListWithProducts returns the lines of a cart with their products, oldest first.
func (r *CartItemRepository) ListWithProducts(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// LockForProduct locks the (cart, product) line if present; nil otherwise.
func (r *CartItemRepository) LockForProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return r.lockOne(ctx, "cart_id = ? AND product_id = ?", cartID, productID)
}

// LockByID locks a line by id, scoped to the cart; nil when not in the cart.
func (r *CartItemRepository) LockByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	return r.lockOne(ctx, "cart_id = ? AND id = ?", cartID, itemID)
}

// LockAll locks every line of the cart ordered by product id.
func (r *CartItemRepository) LockAll(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ?", cartID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *CartItemRepository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *CartItemRepository) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()}).Error
}

// Delete removes one line of the cart and reports how many rows went away.
func (r *CartItemRepository) Delete(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("cart_id = ? AND id = ?", cartID, itemID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteAll empties the cart and reports how many lines were removed.
func (r *CartItemRepository) DeleteAll(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *CartItemRepository) lockOne(ctx context.Context, query string, args ...any) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, args...).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
