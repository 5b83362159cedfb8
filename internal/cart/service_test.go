package cart

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	product "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/dbtest"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	svc, err := NewService(NewRepository(conn), NewCartItemRepository(conn), product.NewRepository(conn), client)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, client
}

func TestViewCreatesEmptyCartOnce(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(first.Items) != 0 || first.TotalItems != 0 || !first.TotalPrice.IsZero() {
		t.Fatalf("expected empty cart, got %+v", first)
	}
	second, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("second view: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same cart, got %s and %s", first.ID, second.ID)
	}

	var count int64
	client.DB().Model(&models.Cart{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one cart row, got %d", count)
	}
}

func TestAddMergesLinesAndComputesTotals(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	mug := dbtest.CreateProduct(t, client, "mug", "10.00", 10, dbtest.WithDiscount("10"))
	pen := dbtest.CreateProduct(t, client, "pen", "2.50", 10)

	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 2}); err != nil {
		t.Fatalf("add mug: %v", err)
	}
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: pen.ID, Quantity: 1}); err != nil {
		t.Fatalf("add pen: %v", err)
	}
	view, err := svc.Add(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add mug again: %v", err)
	}

	if len(view.Items) != 2 {
		t.Fatalf("expected merged lines, got %d", len(view.Items))
	}
	if view.TotalItems != 4 {
		t.Fatalf("expected 4 items, got %d", view.TotalItems)
	}
	// 3 x 9.00 + 1 x 2.50
	if got := view.TotalPrice.StringFixed(2); got != "29.50" {
		t.Fatalf("expected total 29.50, got %s", got)
	}
}

func TestAddRejectsQuantityBeyondStock(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	lamp := dbtest.CreateProduct(t, client, "lamp", "30.00", 3)
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: lamp.ID, Quantity: 2}); err != nil {
		t.Fatalf("add lamp: %v", err)
	}

	_, err := svc.Add(ctx, userID, AddItemInput{ProductID: lamp.ID, Quantity: 2})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	details := typed.Details().(map[string]any)
	if details["available"] != 3 || details["product_name"] != "lamp" || details["requested"] != 4 {
		t.Fatalf("unexpected details %v", details)
	}

	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.TotalItems != 2 {
		t.Fatalf("failed add must not change the line, got %d items", view.TotalItems)
	}
}

func TestAddHugeQuantityReportsInsufficientStock(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	mug := dbtest.CreateProduct(t, client, "mug", "8.00", 5)
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 3}); err != nil {
		t.Fatalf("add mug: %v", err)
	}

	_, err := svc.Add(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: math.MaxInt})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	details := typed.Details().(map[string]any)
	if details["available"] != 5 || details["requested"] != math.MaxInt {
		t.Fatalf("unexpected details %v", details)
	}

	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.TotalItems != 3 {
		t.Fatalf("line must stay at 3, got %d", view.TotalItems)
	}
}

func TestAddValidationAndAvailability(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	draft := dbtest.CreateProduct(t, client, "draft", "1.00", 5, dbtest.WithStatus(enums.ProductStatusDraft))

	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: draft.ID, Quantity: 0}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: draft.ID, Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference) {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: uuid.New(), Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}
}

func TestUpdateItemReplacesQuantity(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	mug := dbtest.CreateProduct(t, client, "mug", "4.00", 5)
	view, err := svc.Add(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := view.Items[0].ID

	view, err = svc.UpdateItem(ctx, userID, itemID, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity replaced with 1, got %d", view.Items[0].Quantity)
	}

	if _, err := svc.UpdateItem(ctx, userID, itemID, 6); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, userID, itemID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, uuid.New(), itemID, 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another user's line, got %v", err)
	}
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	a := dbtest.CreateProduct(t, client, "a", "1.00", 5)
	b := dbtest.CreateProduct(t, client, "b", "1.00", 5)
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: a.ID, Quantity: 1}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	view, err := svc.Add(ctx, userID, AddItemInput{ProductID: b.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add b: %v", err)
	}

	lineID := view.Items[0].ID
	for i := 0; i < 2; i++ {
		view, err = svc.RemoveItem(ctx, userID, lineID)
		if err != nil {
			t.Fatalf("remove attempt %d: %v", i, err)
		}
		if len(view.Items) != 1 {
			t.Fatalf("expected one remaining line, got %d", len(view.Items))
		}
	}

	res, err := svc.Clear(ctx, userID)
	if err != nil || res.Count != 1 || !res.Cleared {
		t.Fatalf("expected one cleared line, got %+v err=%v", res, err)
	}
	res, err = svc.Clear(ctx, userID)
	if err != nil || res.Count != 0 {
		t.Fatalf("expected second clear to remove nothing, got %+v err=%v", res, err)
	}
	res, err = svc.Clear(ctx, uuid.New())
	if err != nil || res.Count != 0 {
		t.Fatalf("expected clear without cart to succeed, got %+v err=%v", res, err)
	}
}

func TestViewSkipsDeletedProducts(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	p := dbtest.CreateProduct(t, client, "ghost", "1.00", 5)
	if _, err := svc.Add(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := client.DB().Delete(&models.Product{}, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}

	view, err := svc.View(ctx, userID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Items) != 0 || !view.TotalPrice.IsZero() {
		t.Fatalf("expected dangling line to be skipped, got %+v", view)
	}
}
