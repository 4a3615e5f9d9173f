package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements invoicing.SequenceRepository using a
// row-locked counter table
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next increments the (userID, key) counter and returns the new value.
// The counter row is created on first use and held with SELECT ... FOR UPDATE
// until the increment commits, so concurrent callers never see the same value.
func (r *GormSequenceRepository) Next(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "seq_key"}},
			DoNothing: true,
		}).Create(models.NewSequenceCounterModel(userID, key, now)).Error; err != nil {
			return err
		}

		var counter models.SequenceCounterModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND seq_key = ?", userID, key).
			First(&counter).Error; err != nil {
			return err
		}

		next = counter.LastID + 1
		return tx.Model(&counter).Updates(map[string]any{
			"last_id":    next,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return 0, storeError("sequences.next", err)
	}
	return next, nil
}

// Current returns the last issued value for key, 0 if none
func (r *GormSequenceRepository) Current(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	var counter models.SequenceCounterModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND seq_key = ?", userID, key).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError("sequences.current", err)
	}
	return counter.LastID, nil
}

var _ invoicing.SequenceRepository = (*GormSequenceRepository)(nil)
