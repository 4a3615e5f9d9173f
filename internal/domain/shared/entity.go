package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// Touch moves UpdatedAt to now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedAggregateRoot is the root of every ledger record. Records belong to
// exactly one user of the billing app and carry an optimistic-lock version.
type OwnedAggregateRoot struct {
	BaseEntity
	UserID  uuid.UUID
	Version int
}

// GetVersion returns the optimistic-lock version
func (a *OwnedAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion bumps the version. Repositories call it after a save guarded
// by the version the record was read with.
func (a *OwnedAggregateRoot) IncrementVersion() {
	a.Version++
}

// BelongsTo reports whether the record is owned by userID
func (a *OwnedAggregateRoot) BelongsTo(userID uuid.UUID) bool {
	return a.UserID == userID
}

// NewOwnedAggregateRoot creates a fresh root owned by userID
func NewOwnedAggregateRoot(userID uuid.UUID) OwnedAggregateRoot {
	return OwnedAggregateRoot{
		BaseEntity: NewBaseEntity(),
		UserID:     userID,
		Version:    1,
	}
}
