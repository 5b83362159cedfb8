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

// Repository exposes persistence operations for carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns the user's cart or nil when none exists yet.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(ctx, userID, false)
}

// LockByUser returns the user's cart locked FOR UPDATE, or nil.
func (r *Repository) LockByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(ctx, userID, true)
}

// GetOrCreateForUpdate makes sure the user has a cart and returns it locked.
// Concurrent creators collide on ux_carts_user_id; the loser keeps the
// winner's row.
func (r *Repository) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	existing, err := r.findByUser(ctx, userID, true)
	if err != nil || existing != nil {
		return existing, err
	}

	fresh := &models.Cart{UserID: userID}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}
	cart, err := r.findByUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, errors.New("cart vanished after upsert")
	}
	return cart, nil
}

// Touch bumps updated_at after a line change.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

func (r *Repository) findByUser(ctx context.Context, userID uuid.UUID, lock bool) (*models.Cart, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cart models.Cart
	err := q.Where("user_id = ?", userID).Take(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}
