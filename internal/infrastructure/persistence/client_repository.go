package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormClientRepository implements invoicing.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client owned by userID
func (r *GormClientRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, storeError("clients.find", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists the clients of userID
func (r *GormClientRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.ClientFilter) ([]invoicing.Client, error) {
	var rows []models.ClientModel
	if err := r.query(ctx, userID, filter).
		Scopes(Paginate(filter.Filter, ClientSortFields, "sequential_id")).
		Find(&rows).Error; err != nil {
		return nil, storeError("clients.list", err)
	}

	clients := make([]invoicing.Client, len(rows))
	for i := range rows {
		clients[i] = *rows[i].ToDomain()
	}
	return clients, nil
}

// Count counts the clients matching filter
func (r *GormClientRepository) Count(ctx context.Context, userID uuid.UUID, filter invoicing.ClientFilter) (int64, error) {
	var count int64
	if err := r.query(ctx, userID, filter).Model(&models.ClientModel{}).Count(&count).Error; err != nil {
		return 0, storeError("clients.count", err)
	}
	return count, nil
}

func (r *GormClientRepository) query(ctx context.Context, userID uuid.UUID, filter invoicing.ClientFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ClientModel{}).Scopes(OwnedBy(userID))
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern, pattern)
	}
	return query
}

// Save creates or updates a client
func (r *GormClientRepository) Save(ctx context.Context, client *invoicing.Client) error {
	model := models.ClientModelFromDomain(client)
	return storeError("clients.save", r.db.WithContext(ctx).Save(model).Error)
}

var _ invoicing.ClientRepository = (*GormClientRepository)(nil)
