package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDocumentRepository implements invoicing.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document owned by userID
func (r *GormDocumentRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, storeError("documents.find", err)
	}
	return model.ToDomain()
}

// FindAll lists documents matching filter
func (r *GormDocumentRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.DocumentFilter) ([]invoicing.Document, error) {
	var rows []models.DocumentModel
	if err := r.query(ctx, userID, filter).
		Scopes(Paginate(filter.Filter, DocumentSortFields, "date")).
		Find(&rows).Error; err != nil {
		return nil, storeError("documents.list", err)
	}
	return toDocuments(rows)
}

// Count counts documents matching filter
func (r *GormDocumentRepository) Count(ctx context.Context, userID uuid.UUID, filter invoicing.DocumentFilter) (int64, error) {
	var count int64
	if err := r.query(ctx, userID, filter).Count(&count).Error; err != nil {
		return 0, storeError("documents.count", err)
	}
	return count, nil
}

func (r *GormDocumentRepository) query(ctx context.Context, userID uuid.UUID, filter invoicing.DocumentFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Scopes(OwnedBy(userID))
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Cancelled != nil {
		query = query.Where("cancelled = ?", *filter.Cancelled)
	}
	if filter.Paid != nil {
		query = query.Where("paid = ?", *filter.Paid)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(number) LIKE ? OR LOWER(client_name) LIKE ?", pattern, pattern)
	}
	return query
}

// FindOutstandingByClient returns the active, non-cancelled, unpaid invoices of a client, oldest first
func (r *GormDocumentRepository) FindOutstandingByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Document, error) {
	var rows []models.DocumentModel
	if err := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("client_id = ? AND type = ? AND status = ? AND cancelled = ? AND paid = ?",
			clientID, invoicing.DocumentTypeInvoice, invoicing.DocumentStatusActive, false, false).
		Order("date ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("documents.outstanding", err)
	}
	return toDocuments(rows)
}

// FindPendingReleases lists cancelled invoices, across all owners, that chose
// move_to_client_account but still have payments attached. These are cancels
// whose payment release was interrupted.
func (r *GormDocumentRepository) FindPendingReleases(ctx context.Context, limit int) ([]invoicing.Document, error) {
	var rows []models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("type = ? AND cancelled = ? AND payments_moved_to_client_account = ?",
			invoicing.DocumentTypeInvoice, true, true).
		Where("EXISTS (SELECT 1 FROM payments WHERE payments.document_id = documents.id AND payments.user_id = documents.user_id)").
		Order("cancelled_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, storeError("documents.pending_releases", err)
	}
	return toDocuments(rows)
}

// Save creates or fully overwrites a document
func (r *GormDocumentRepository) Save(ctx context.Context, doc *invoicing.Document) error {
	model, err := models.DocumentModelFromDomain(doc)
	if err != nil {
		return err
	}
	return storeError("documents.save", r.db.WithContext(ctx).Save(model).Error)
}

// SaveWithLock writes the document only if its stored version still equals
// doc.Version. On success doc.Version is bumped. The payment totals are left
// out: only UpdatePaymentTotals writes them.
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, doc *invoicing.Document) error {
	model, err := models.DocumentModelFromDomain(doc)
	if err != nil {
		return err
	}
	model.Version = doc.Version + 1

	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "user_id", "total_paid", "paid", "last_payment_date").
		Where("user_id = ? AND version = ?", doc.UserID, doc.Version).
		Updates(model)
	if result.Error != nil {
		return storeError("documents.save", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	doc.IncrementVersion()
	return nil
}

// UpdatePaymentTotals writes only the derived payment fields. The version is
// left alone: the totals are recomputed from the payment set, never edited.
func (r *GormDocumentRepository) UpdatePaymentTotals(ctx context.Context, userID, id uuid.UUID, totalPaid decimal.Decimal, paid bool, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_paid":        totalPaid,
			"paid":              paid,
			"last_payment_date": at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return storeError("documents.update_totals", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete physically removes the document
func (r *GormDocumentRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Delete(&models.DocumentModel{}, "id = ?", id)
	if result.Error != nil {
		return storeError("documents.delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDocuments(rows []models.DocumentModel) ([]invoicing.Document, error) {
	docs := make([]invoicing.Document, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		docs[i] = *doc
	}
	return docs, nil
}

var _ invoicing.DocumentRepository = (*GormDocumentRepository)(nil)
