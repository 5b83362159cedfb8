package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/internal/cart"
	"github.com/Nikul30701/E-Commerce-Plateform/internal/orders"
	product "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/money"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox/payloads"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/redis"
)

const inFlightScope = "checkout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressLoader interface {
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
}

// Service converts a user's cart into an order.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*orders.OrderDTO, error)
}

// CheckoutInput is the checkout request payload.
type CheckoutInput struct {
	AddressID uuid.UUID `json:"address_id" validate:"required"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ServiceParams wires the checkout service. InFlight, Metrics and Logger are
// optional.
type ServiceParams struct {
	Tx          txRunner
	Addresses   addressLoader
	Carts       cart.CartRepository
	CartItems   cart.ItemRepository
	Products    *product.Repository
	Orders      orders.Repository
	Outbox      outbox.Emitter
	InFlight    redis.InFlightMarker
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
	TaxRate     decimal.Decimal
	InFlightTTL time.Duration
}

type service struct {
	tx          txRunner
	addresses   addressLoader
	carts       cart.CartRepository
	cartItems   cart.ItemRepository
	products    *product.Repository
	orders      orders.Repository
	outbox      outbox.Emitter
	inFlight    redis.InFlightMarker
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	taxRate     decimal.Decimal
	inFlightTTL time.Duration

	newOrderNumber func() string
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.Carts == nil || params.CartItems == nil {
		return nil, fmt.Errorf("cart repositories required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TaxRate.IsNegative() || params.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate must be within [0, 1), got %s", params.TaxRate)
	}
	ttl := params.InFlightTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &service{
		tx:             params.Tx,
		addresses:      params.Addresses,
		carts:          params.Carts,
		cartItems:      params.CartItems,
		products:       params.Products,
		orders:         params.Orders,
		outbox:         params.Outbox,
		inFlight:       params.InFlight,
		metrics:        params.Metrics,
		logg:           params.Logger,
		taxRate:        params.TaxRate,
		inFlightTTL:    ttl,
		newOrderNumber: NewOrderNumber,
	}, nil
}

// Execute runs checkout for userID. Either the order is created, stock is
// decremented and the cart emptied together, or nothing changes.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (dto *orders.OrderDTO, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("checkout", started, err) }()

	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address_id is required")
	}
	address, err := s.addresses.FindForUser(ctx, userID, input.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownReference, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}

	release, err := s.acquireInFlight(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		placed, err := s.place(ctx, tx, userID, address, input.Notes)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.ShippingAddress = address
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number": order.OrderNumber,
			"total":        order.Total.StringFixed(2),
			"lines":        len(order.Items),
		})
		s.logg.Info(logCtx, "checkout.order_placed")
	}
	return orders.NewOrderDTO(order), nil
}

func (s *service) place(ctx context.Context, tx *gorm.DB, userID uuid.UUID, address *models.Address, notes *string) (*models.Order, error) {
	c, err := s.carts.WithTx(tx).LockByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
	}
	if c == nil {
		return nil, emptyCart()
	}
	cartItems := s.cartItems.WithTx(tx)
	lines, err := cartItems.LockAll(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart lines")
	}
	if len(lines) == 0 {
		return nil, emptyCart()
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	productsRepo := s.products.WithTx(tx)
	locked, err := productsRepo.LockByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	deltas := make([]product.StockDelta, 0, len(lines))
	eventLines := make([]payloads.OrderLine, 0, len(lines))
	for _, line := range lines {
		p, ok := locked[line.ProductID]
		if !ok {
			return nil, product.Unavailable(line.ProductID, "")
		}
		if p.Status != enums.ProductStatusActive {
			return nil, product.Unavailable(p.ID, p.Name)
		}
		if line.Quantity > p.Stock {
			return nil, product.InsufficientStock(p, line.Quantity)
		}

		unit := p.DiscountedPrice()
		subtotal = subtotal.Add(money.LineTotal(unit, line.Quantity))
		productID := p.ID
		items = append(items, models.OrderItem{
			ProductID:    &productID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			UnitPrice:    unit,
			Quantity:     line.Quantity,
		})
		deltas = append(deltas, product.StockDelta{ProductID: p.ID, Quantity: line.Quantity})
		eventLines = append(eventLines, payloads.OrderLine{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			UnitPrice: unit.StringFixed(2),
		})
	}
	subtotal = money.Round(subtotal)
	tax := money.Tax(subtotal, s.taxRate)
	addressID := address.ID

	order := &models.Order{
		UserID:            userID,
		ShippingAddressID: &addressID,
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusUnpaid,
		Subtotal:          subtotal,
		Tax:               tax,
		Total:             subtotal.Add(tax),
		Notes:             notes,
	}
	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	ordersRepo := s.orders.WithTx(tx)
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := ordersRepo.CreateOrderItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order items")
	}
	if err := productsRepo.DecrementStock(ctx, deltas); err != nil {
		return nil, err
	}
	if _, err := cartItems.DeleteAll(ctx, c.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if err := s.carts.WithTx(tx).Touch(ctx, c.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer.String()},
		Data: payloads.OrderPlacedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      userID,
			Subtotal:    order.Subtotal.StringFixed(2),
			Tax:         order.Tax.StringFixed(2),
			Total:       order.Total.StringFixed(2),
			Lines:       eventLines,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order placed event")
	}

	order.Items = items
	return order, nil
}

// insertOrder assigns a fresh order number, retrying under a savepoint when
// the number collides with an existing order.
func (s *service) insertOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.orders.WithTx(tx)
	var lastErr error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.OrderNumber = s.newOrderNumber()
		if err := tx.SavePoint(orderNumberSavePt).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create savepoint")
		}
		err := repo.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !isOrderNumberCollision(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if rbErr := tx.RollbackTo(orderNumberSavePt).Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback to savepoint")
		}
		order.ID = uuid.Nil
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique order number")
}

// acquireInFlight claims the per-user checkout marker. Without a marker store
// the guard is skipped; a store error fails open and relies on row locks.
func (s *service) acquireInFlight(ctx context.Context, userID uuid.UUID) (func(), error) {
	noop := func() {}
	if s.inFlight == nil {
		return noop, nil
	}
	ok, err := s.inFlight.AcquireInFlight(ctx, inFlightScope, userID.String(), s.inFlightTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.inflight_unavailable")
		}
		return noop, nil
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress for this user")
	}
	return func() {
		if err := s.inFlight.ReleaseInFlight(context.WithoutCancel(ctx), inFlightScope, userID.String()); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.inflight_release_failed")
		}
	}, nil
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
}
