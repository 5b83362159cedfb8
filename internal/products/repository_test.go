package product

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/dbtest"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

func TestRepositoryDecrementStockAppliesAllOrNothing(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	mug := dbtest.CreateProduct(t, client, "mug", "10.00", 5)
	lamp := dbtest.CreateProduct(t, client, "lamp", "30.00", 1)

	err := repo.DecrementStock(ctx, []StockDelta{
		{ProductID: mug.ID, Quantity: 2},
		{ProductID: lamp.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dbtest.ReloadProduct(t, client, mug.ID).Stock)
	assert.Equal(t, 0, dbtest.ReloadProduct(t, client, lamp.ID).Stock)

	err = repo.DecrementStock(ctx, []StockDelta{
		{ProductID: mug.ID, Quantity: 1},
		{ProductID: lamp.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 0, dbtest.ReloadProduct(t, client, lamp.ID).Stock)
}

func TestRepositoryDecrementStockNamesShortProduct(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	mug := dbtest.CreateProduct(t, client, "mug", "10.00", 5)
	lamp := dbtest.CreateProduct(t, client, "lamp", "30.00", 2)

	err := repo.DecrementStock(ctx, []StockDelta{
		{ProductID: mug.ID, Quantity: 3},
		{ProductID: lamp.ID, Quantity: 4},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, lamp.ID.String(), details["product_id"])
	assert.Equal(t, "lamp", details["product_name"])
	assert.Equal(t, 2, details["available"])
	assert.Equal(t, 4, details["requested"])
}

func TestProductStatusDefaultsToDraft(t *testing.T) {
	client := dbtest.Open(t)
	p := &models.Product{Name: "bare", Slug: "bare-" + uuid.NewString()[:8], Price: decimal.RequireFromString("1.00")}
	require.NoError(t, client.DB().Create(p).Error)
	assert.Equal(t, enums.ProductStatusDraft, dbtest.ReloadProduct(t, client, p.ID).Status)
}

func TestRepositoryIncrementStockIsRelative(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	p := dbtest.CreateProduct(t, client, "pen", "1.00", 4)
	require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", 9).Error)

	require.NoError(t, repo.IncrementStock(ctx, p.ID, 3))
	assert.Equal(t, 12, dbtest.ReloadProduct(t, client, p.ID).Stock)
}

func TestRepositoryLockActiveByID(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	active := dbtest.CreateProduct(t, client, "active", "2.00", 1)
	draft := dbtest.CreateProduct(t, client, "draft", "2.00", 1, dbtest.WithStatus(enums.ProductStatusDraft))

	got, err := repo.LockActiveByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = repo.LockActiveByID(ctx, draft.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference))

	_, err = repo.LockActiveByID(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference))
}

func TestRepositoryLockByIDsSkipsMissing(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	a := dbtest.CreateProduct(t, client, "a", "1.00", 1)
	b := dbtest.CreateProduct(t, client, "b", "1.00", 1)
	missing := uuid.New()

	rows, err := repo.LockByIDs(context.Background(), []uuid.UUID{b.ID, missing, a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Contains(t, rows, a.ID)
	assert.Contains(t, rows, b.ID)
}

func TestRepositoryListProductsPaginates(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"oldest", "middle", "newest"} {
		p := dbtest.CreateProduct(t, client, name, "5.00", 1)
		require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", p.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
	}
	dbtest.CreateProduct(t, client, "hidden", "5.00", 1, dbtest.WithStatus(enums.ProductStatusDraft))

	first, next, err := repo.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "newest", first[0].Name)
	assert.Equal(t, "middle", first[1].Name)
	require.NotEmpty(t, next)

	second, next, err := repo.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2, Cursor: next}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "oldest", second[0].Name)
	assert.Empty(t, next)
}

func TestRepositoryListProductsSearch(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	dbtest.CreateProduct(t, client, "Blue Mug", "5.00", 1)
	dbtest.CreateProduct(t, client, "Red Lamp", "5.00", 1)

	rows, _, err := repo.ListProducts(context.Background(), ListProductsInput{Filters: ProductListFilters{Query: "mug"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Blue Mug", rows[0].Name)
}

func TestRepositoryDeleteProductDetachesOrderItems(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	p := dbtest.CreateProduct(t, client, "gone", "5.00", 1)
	order := &models.Order{
		OrderNumber: "ORD-0000abcd",
		UserID:      uuid.New(),
		Status:      enums.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID:   &p.ID,
			ProductName: "gone",
			UnitPrice:   p.Price,
			Quantity:    1,
		}},
	}
	require.NoError(t, client.DB().Create(order).Error)

	require.NoError(t, repo.DeleteProduct(context.Background(), p.ID))

	var item models.OrderItem
	require.NoError(t, client.DB().First(&item, "order_id = ?", order.ID).Error)
	assert.Nil(t, item.ProductID)
	assert.Equal(t, "gone", item.ProductName)
}
