package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockItemRepository implements invoicing.StockItemRepository using GORM
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

// FindByID finds a stock item owned by userID
func (r *GormStockItemRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.StockItem, error) {
	var model models.StockItemModel
	if err := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, storeError("stock_items.find", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists stock items
func (r *GormStockItemRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.StockItemFilter) ([]invoicing.StockItem, error) {
	var rows []models.StockItemModel
	if err := r.query(ctx, userID, filter).
		Scopes(Paginate(filter.Filter, StockItemSortFields, "sequential_id")).
		Find(&rows).Error; err != nil {
		return nil, storeError("stock_items.list", err)
	}

	items := make([]invoicing.StockItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// Count counts stock items matching filter
func (r *GormStockItemRepository) Count(ctx context.Context, userID uuid.UUID, filter invoicing.StockItemFilter) (int64, error) {
	var count int64
	if err := r.query(ctx, userID, filter).Count(&count).Error; err != nil {
		return 0, storeError("stock_items.count", err)
	}
	return count, nil
}

func (r *GormStockItemRepository) query(ctx context.Context, userID uuid.UUID, filter invoicing.StockItemFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.StockItemModel{}).Scopes(OwnedBy(userID))
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return query
}

// Save creates or updates a stock item
func (r *GormStockItemRepository) Save(ctx context.Context, item *invoicing.StockItem) error {
	model := models.StockItemModelFromDomain(item)
	return storeError("stock_items.save", r.db.WithContext(ctx).Save(model).Error)
}

var _ invoicing.StockItemRepository = (*GormStockItemRepository)(nil)
