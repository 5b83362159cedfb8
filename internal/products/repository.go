package product

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

// StockDelta is a per-product quantity used by bulk stock updates.
type StockDelta struct {
	ProductID uuid.UUID
	Quantity  int
}

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListCategories returns every category ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// CreateCategory inserts a category row.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// CategoryExists reports whether a category with id exists.
func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product. Cart lines referencing it are removed and
// order items keep their snapshot with a nil product reference.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Update("product_id", nil).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockActiveByID loads the product row FOR UPDATE. Missing or non-active
// products yield a NotFound error.
func (r *Repository) LockActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unavailable(id, "")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
	}
	if product.Status != enums.ProductStatusActive {
		return nil, Unavailable(product.ID, product.Name)
	}
	return &product, nil
}

// LockByIDs locks the given products FOR UPDATE in ascending id order and
// returns them keyed by id. Missing ids are simply absent from the map.
func (r *Repository) LockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sorted := SortedIDs(ids)

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// DecrementStock subtracts every delta in a single guarded UPDATE. It fails
// with InsufficientStock when any row would go negative; in that case no row
// is changed once the caller rolls back.
func (r *Repository) DecrementStock(ctx context.Context, deltas []StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	sorted := make([]StockDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	var caseSQL strings.Builder
	caseSQL.WriteString("CASE id")
	caseArgs := make([]any, 0, len(sorted)*2)
	ids := make([]uuid.UUID, 0, len(sorted))
	for _, d := range sorted {
		caseSQL.WriteString(" WHEN ? THEN ?")
		caseArgs = append(caseArgs, d.ProductID, d.Quantity)
		ids = append(ids, d.ProductID)
	}
	caseSQL.WriteString(" END")

	query := fmt.Sprintf(
		"UPDATE products SET stock = stock - %[1]s, updated_at = ? WHERE id IN ? AND stock >= %[1]s RETURNING id",
		caseSQL.String(),
	)
	args := make([]any, 0, len(caseArgs)*2+2)
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC(), ids)
	args = append(args, caseArgs...)

	var updated []uuid.UUID
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&updated).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if len(updated) != len(sorted) {
		return r.shortfall(ctx, sorted, updated)
	}
	return nil
}

// shortfall explains a failed DecrementStock using the first line the guard
// rejected. Rejected rows were not touched, so their stock is current.
func (r *Repository) shortfall(ctx context.Context, deltas []StockDelta, updated []uuid.UUID) error {
	done := make(map[uuid.UUID]bool, len(updated))
	for _, id := range updated {
		done[id] = true
	}
	rejected := make([]uuid.UUID, 0, len(deltas)-len(updated))
	for _, d := range deltas {
		if !done[d.ProductID] {
			rejected = append(rejected, d.ProductID)
		}
	}

	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", rejected).Find(&rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rejected products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	for _, d := range deltas {
		if done[d.ProductID] {
			continue
		}
		p, ok := byID[d.ProductID]
		if !ok {
			return Unavailable(d.ProductID, "")
		}
		return InsufficientStock(p, d.Quantity)
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock changed during checkout")
}

// IncrementStock adds quantity to the product's current stock.
func (r *Repository) IncrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListProducts returns one cursor page ordered by created_at DESC, id DESC.
func (r *Repository) ListProducts(ctx context.Context, input ListProductsInput) ([]models.Product, string, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	qb := r.db.WithContext(ctx).Model(&models.Product{})

	filter := input.Filters
	if filter.CategoryID != nil {
		qb = qb.Where("category_id = ?", *filter.CategoryID)
	}
	if !input.IncludeInactive {
		qb = qb.Where("status = ?", enums.ProductStatusActive)
	} else if filter.Status != nil {
		qb = qb.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)", pattern, pattern)
	}
	if cursor != nil {
		qb = qb.Where(pagination.AfterCursor, cursor.Args()...)
	}

	var rows []models.Product
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(input.Pagination.Limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return rows, next, nil
}

// SortedIDs returns a deduplicated copy of ids in ascending order, the order
// every writer acquires product row locks in.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
