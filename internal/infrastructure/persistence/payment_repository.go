package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements invoicing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment owned by userID
func (r *GormPaymentRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, storeError("payments.find", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists payments matching filter
func (r *GormPaymentRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.PaymentFilter) ([]invoicing.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Scopes(OwnedBy(userID))
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.DocumentID != nil {
		query = query.Where("document_id = ?", *filter.DocumentID)
	}
	if filter.Unallocated != nil {
		if *filter.Unallocated {
			query = query.Where("document_id IS NULL")
		} else {
			query = query.Where("document_id IS NOT NULL")
		}
	}

	var rows []models.PaymentModel
	if err := query.
		Scopes(Paginate(filter.Filter, PaymentSortFields, "payment_date")).
		Find(&rows).Error; err != nil {
		return nil, storeError("payments.list", err)
	}
	return toPayments(rows), nil
}

// FindByClient returns every payment of a client in allocation order
func (r *GormPaymentRepository) FindByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Payment, error) {
	return r.findOrdered(ctx, "payments.by_client", OwnedBy(userID), func(db *gorm.DB) *gorm.DB {
		return db.Where("client_id = ?", clientID)
	})
}

// FindByDocument returns the payments allocated to a document
func (r *GormPaymentRepository) FindByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]invoicing.Payment, error) {
	return r.findOrdered(ctx, "payments.by_document", OwnedBy(userID), func(db *gorm.DB) *gorm.DB {
		return db.Where("document_id = ?", documentID)
	})
}

// FindUnallocatedByClient returns the client's unallocated pool, oldest first
func (r *GormPaymentRepository) FindUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Payment, error) {
	return r.findOrdered(ctx, "payments.unallocated", OwnedBy(userID), func(db *gorm.DB) *gorm.DB {
		return db.Where("client_id = ? AND document_id IS NULL", clientID)
	})
}

func (r *GormPaymentRepository) findOrdered(ctx context.Context, op string, scopes ...func(*gorm.DB) *gorm.DB) ([]invoicing.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(scopes...).
		Order("payment_date ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError(op, err)
	}
	return toPayments(rows), nil
}

// SumByDocument returns the total allocated to a document
func (r *GormPaymentRepository) SumByDocument(ctx context.Context, userID, documentID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(ctx, "payments.sum_document", userID, "document_id = ?", documentID)
}

// SumUnallocatedByClient returns the client's unallocated balance
func (r *GormPaymentRepository) SumUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(ctx, "payments.sum_unallocated", userID, "client_id = ? AND document_id IS NULL", clientID)
}

func (r *GormPaymentRepository) sum(ctx context.Context, op string, userID uuid.UUID, where string, args ...any) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Scopes(OwnedBy(userID)).
		Where(where, args...).
		Scan(&result).Error; err != nil {
		return decimal.Zero, storeError(op, err)
	}
	return invoicing.RoundMoney(result.Total), nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return storeError("payments.create", r.db.WithContext(ctx).Create(model).Error)
}

// ApplyAllocation commits an allocation plan in one transaction. Every
// allocated row must still be unallocated and at its read version.
func (r *GormPaymentRepository) ApplyAllocation(ctx context.Context, plan *invoicing.AllocationPlan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, payment := range plan.Allocated {
			if err := updatePaymentGuarded(tx, payment, true); err != nil {
				return err
			}
		}
		if plan.Remainder != nil {
			if err := tx.Create(models.PaymentModelFromDomain(plan.Remainder)).Error; err != nil {
				return storeError("payments.create_remainder", err)
			}
		}
		return nil
	})
	if err != nil {
		return storeError("payments.apply_allocation", err)
	}

	for _, payment := range plan.Allocated {
		payment.IncrementVersion()
	}
	return nil
}

// SaveBatch updates payments in one transaction under version checks
func (r *GormPaymentRepository) SaveBatch(ctx context.Context, payments []*invoicing.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, payment := range payments {
			if err := updatePaymentGuarded(tx, payment, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeError("payments.save_batch", err)
	}

	for _, payment := range payments {
		payment.IncrementVersion()
	}
	return nil
}

// DeleteWithLock physically removes a payment that is still at the version
// and document it was read with
func (r *GormPaymentRepository) DeleteWithLock(ctx context.Context, payment *invoicing.Payment) error {
	query := r.db.WithContext(ctx).
		Scopes(OwnedBy(payment.UserID)).
		Where("id = ? AND version = ?", payment.ID, payment.Version)
	if payment.DocumentID != nil {
		query = query.Where("document_id = ?", *payment.DocumentID)
	} else {
		query = query.Where("document_id IS NULL")
	}

	result := query.Delete(&models.PaymentModel{})
	if result.Error != nil {
		return storeError("payments.delete", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, payment.UserID, payment.ID); err != nil {
		return err
	}
	return shared.ErrConcurrencyConflict
}

// updatePaymentGuarded writes every column of payment where the stored row
// still has the read version. With requireUnallocated the stored row must
// also have no document.
func updatePaymentGuarded(db *gorm.DB, payment *invoicing.Payment, requireUnallocated bool) error {
	model := models.PaymentModelFromDomain(payment)
	model.Version = payment.Version + 1

	query := db.Model(model).
		Select("*").
		Omit("id", "created_at", "user_id").
		Where("user_id = ? AND version = ?", payment.UserID, payment.Version)
	if requireUnallocated {
		query = query.Where("document_id IS NULL")
	}

	result := query.Updates(model)
	if result.Error != nil {
		return storeError("payments.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func toPayments(rows []models.PaymentModel) []invoicing.Payment {
	payments := make([]invoicing.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments
}

var _ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)
