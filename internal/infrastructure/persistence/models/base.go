package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// OwnedAggregateModel provides the persistence fields of a user-owned aggregate root:
// the owner and the optimistic-lock version.
type OwnedAggregateModel struct {
	BaseModel
	UserID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Version int       `gorm:"not null;default:1"`
}

// FromDomainOwnedAggregateRoot populates OwnedAggregateModel from the domain root
func (m *OwnedAggregateModel) FromDomainOwnedAggregateRoot(a shared.OwnedAggregateRoot) {
	m.ID = a.ID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.UserID = a.UserID
	m.Version = a.Version
}

// ToDomainOwnedAggregateRoot rebuilds the domain root
func (m *OwnedAggregateModel) ToDomainOwnedAggregateRoot() shared.OwnedAggregateRoot {
	return shared.OwnedAggregateRoot{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:  m.UserID,
		Version: m.Version,
	}
}
