package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox/payloads"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

// Service is the order lifecycle manager.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*OrderList, error)
	Detail(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*CancelResult, error)
	AdminList(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	SetStatus(ctx context.Context, actorID, orderID uuid.UUID, input SetStatusInput) (*OrderDTO, error)
}

// SetStatusInput is the administrative status update payload.
type SetStatusInput struct {
	Status        string  `json:"status" validate:"required"`
	PaymentStatus *string `json:"payment_status,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Products *product.Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	products *product.Repository
	tx       txRunner
	outbox   outbox.Emitter
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		tx:       params.Tx,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*OrderList, error) {
	return s.list(ctx, params, OrderFilters{UserID: &userID, Status: status})
}

func (s *service) AdminList(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	return s.list(ctx, params, filters)
}

func (s *service) list(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if filters.PaymentStatus != nil && !filters.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	rows, next, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Orders = append(out.Orders, newOrderSummary(&rows[i]))
	}
	return out, nil
}

// Detail returns an order owned by userID. Orders of other users are
// reported as missing.
func (s *service) Detail(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return NewOrderDTO(order), nil
}

// Cancel cancels the caller's order and hands the purchased units back to
// stock. Pending, confirmed and shipped orders can be cancelled.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (result *CancelResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("cancel", started, err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !CanCancel(order.Status) {
			return invalidTransition(order.Status, enums.OrderStatusCancelled)
		}

		items, err := repo.FindOrderItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		restock := restockPlan(items)
		products := s.products.WithTx(tx)
		for _, r := range restock {
			if err := products.IncrementStock(ctx, r.ProductID, r.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock").
					WithDetails(map[string]any{"product_id": r.ProductID.String()})
			}
		}

		if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusCancelled, enums.PaymentStatusRefunded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer.String()},
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				UserID:         order.UserID,
				PreviousStatus: order.Status,
				Restocked:      restock,
				CancelledAt:    time.Now().UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled event")
		}

		result = &CancelResult{ID: order.ID, Status: enums.OrderStatusCancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, result.ID, "order.cancelled")
	return result, nil
}

// SetStatus applies an administrative status change. Moving to cancelled here
// never restores stock. Repeating the current status only updates the payment
// status, when one is supplied.
func (s *service) SetStatus(ctx context.Context, actorID, orderID uuid.UUID, input SetStatusInput) (dto *OrderDTO, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("set_status", started, err) }()

	target, err := enums.ParseOrderStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
			WithDetails(map[string]any{"status": input.Status})
	}
	var payment *enums.PaymentStatus
	if input.PaymentStatus != nil {
		parsed, err := enums.ParsePaymentStatus(*input.PaymentStatus)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").
				WithDetails(map[string]any{"payment_status": *input.PaymentStatus})
		}
		payment = &parsed
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		nextPayment := current.PaymentStatus
		if payment != nil {
			nextPayment = *payment
		}
		if target == current.Status && nextPayment == current.PaymentStatus {
			return nil
		}
		if target != current.Status && !CanTransition(current.Status, target) {
			return invalidTransition(current.Status, target)
		}

		if err := repo.UpdateOrderStatus(ctx, current.ID, target, nextPayment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: enums.RoleAdmin.String()},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       current.ID,
				OrderNumber:   current.OrderNumber,
				From:          current.Status,
				To:            target,
				PaymentStatus: nextPayment,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	s.logInfo(ctx, order.ID, "order.status_updated")
	return NewOrderDTO(order), nil
}

// restockPlan sums quantities per live product reference in ascending
// product id order, the same order checkout locks products in.
func restockPlan(items []models.OrderItem) []payloads.StockRestore {
	totals := map[uuid.UUID]int{}
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		totals[*item.ProductID] += item.Quantity
	}
	out := make([]payloads.StockRestore, 0, len(totals))
	for id, qty := range totals {
		out = append(out, payloads.StockRestore{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("cannot move order from %s to %s", from, to),
	).WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}

func (s *service) logInfo(ctx context.Context, orderID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), msg)
}
