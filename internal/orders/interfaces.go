package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, payment enums.PaymentStatus) error
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) ([]models.Order, string, error)
}
