package models

import (
	"time"

	"github.com/google/uuid"
)

// SequenceCounterModel stores the last value issued for one (user, key) counter.
// Keys are sequence kinds, optionally suffixed with a year.
type SequenceCounterModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sequence_user_key,priority:1"`
	Key       string    `gorm:"column:seq_key;type:varchar(100);not null;uniqueIndex:idx_sequence_user_key,priority:2"`
	LastID    int64     `gorm:"column:last_id;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}

// NewSequenceCounterModel creates an unissued counter row
func NewSequenceCounterModel(userID uuid.UUID, key string, at time.Time) *SequenceCounterModel {
	return &SequenceCounterModel{
		ID:        uuid.New(),
		UserID:    userID,
		Key:       key,
		UpdatedAt: at,
	}
}
