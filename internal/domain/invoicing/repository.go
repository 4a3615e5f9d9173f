package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// ClientFilter defines filtering options for client queries
type ClientFilter struct {
	shared.Filter
}

// ClientRepository persists clients
type ClientRepository interface {
	// FindByID returns the client or shared.ErrNotFound
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Client, error)
	FindAll(ctx context.Context, userID uuid.UUID, filter ClientFilter) ([]Client, error)
	Count(ctx context.Context, userID uuid.UUID, filter ClientFilter) (int64, error)
	Save(ctx context.Context, client *Client) error
}

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	Type      *DocumentType
	ClientID  *uuid.UUID
	Cancelled *bool
	Paid      *bool
	Status    *DocumentStatus
}

// DocumentRepository persists invoices and proformas
type DocumentRepository interface {
	// FindByID returns the document or shared.ErrNotFound
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Document, error)
	FindAll(ctx context.Context, userID uuid.UUID, filter DocumentFilter) ([]Document, error)
	Count(ctx context.Context, userID uuid.UUID, filter DocumentFilter) (int64, error)
	// FindOutstandingByClient returns active, non-cancelled, unpaid invoices of a client, oldest first
	FindOutstandingByClient(ctx context.Context, userID, clientID uuid.UUID) ([]Document, error)
	Save(ctx context.Context, doc *Document) error
	// SaveWithLock saves the document only if nobody changed it since it was read
	SaveWithLock(ctx context.Context, doc *Document) error
	// UpdatePaymentTotals writes only the derived payment fields
	UpdatePaymentTotals(ctx context.Context, userID, id uuid.UUID, totalPaid decimal.Decimal, paid bool, at time.Time) error
	// Delete physically removes the document
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	ClientID    *uuid.UUID
	DocumentID  *uuid.UUID
	Unallocated *bool
}

// PaymentRepository persists payments.
// The unallocated balance of a client is never stored; it is always
// SumUnallocatedByClient over the current payment set.
type PaymentRepository interface {
	// FindByID returns the payment or shared.ErrNotFound
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Payment, error)
	FindAll(ctx context.Context, userID uuid.UUID, filter PaymentFilter) ([]Payment, error)
	FindByClient(ctx context.Context, userID, clientID uuid.UUID) ([]Payment, error)
	FindByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]Payment, error)
	FindUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) ([]Payment, error)
	SumByDocument(ctx context.Context, userID, documentID uuid.UUID) (decimal.Decimal, error)
	SumUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) (decimal.Decimal, error)
	Create(ctx context.Context, payment *Payment) error
	// ApplyAllocation commits an allocation plan atomically: every allocated
	// row is updated under a version check and the split remainder, if any,
	// is inserted. Any lost race rolls the whole batch back.
	ApplyAllocation(ctx context.Context, plan *AllocationPlan) error
	// SaveBatch updates the given payments atomically under version checks
	SaveBatch(ctx context.Context, payments []*Payment) error
	// DeleteWithLock removes the payment only if its stored version and
	// document still match payment. A row changed since the read yields
	// shared.ErrConcurrencyConflict, a missing row shared.ErrNotFound.
	DeleteWithLock(ctx context.Context, payment *Payment) error
}

// SequenceRepository issues monotonic counter values
type SequenceRepository interface {
	// Next increments the (userID, key) counter inside one transaction and
	// returns the new value. The first call for a key returns 1.
	Next(ctx context.Context, userID uuid.UUID, key string) (int64, error)
	// Current returns the last issued value, 0 if none
	Current(ctx context.Context, userID uuid.UUID, key string) (int64, error)
}

// StockItemFilter defines filtering options for stock item queries
type StockItemFilter struct {
	shared.Filter
}

// StockItemRepository persists stock items
type StockItemRepository interface {
	FindByID(ctx context.Context, userID, id uuid.UUID) (*StockItem, error)
	FindAll(ctx context.Context, userID uuid.UUID, filter StockItemFilter) ([]StockItem, error)
	Count(ctx context.Context, userID uuid.UUID, filter StockItemFilter) (int64, error)
	Save(ctx context.Context, item *StockItem) error
}
