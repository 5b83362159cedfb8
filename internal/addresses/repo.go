package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
)

// Repository persists address book rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListByUser returns the default address first, then newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// LockByUser locks every address of the user. Serialises default-flag changes.
func (r *Repository) LockByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindForUser loads an address owned by userID.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var row models.Address
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

func (r *Repository) Save(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Save(address).Error
}

// ClearDefault unsets the current default of the user, skipping keepID.
func (r *Repository) ClearDefault(ctx context.Context, userID, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND is_default = ? AND id <> ?", userID, true, keepID).
		Update("is_default", false).Error
}

// Delete removes the address and detaches orders that shipped to it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Model(&models.Order{}).Where("shipping_address_id = ?", id).Update("shipping_address_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&models.Address{}).Error
}
