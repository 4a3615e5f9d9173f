package invoicing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// Aggregate type names carried by events
const (
	AggregateTypeDocument = "Document"
	AggregateTypePayment  = "Payment"
	AggregateTypeClient   = "Client"
)

// Event types published by the settlement workflows
const (
	EventTypePaymentRecorded   = "PaymentRecorded"
	EventTypePaymentsAllocated = "PaymentsAllocated"
	EventTypePaymentDeleted    = "PaymentDeleted"
	EventTypeInvoiceReconciled = "InvoiceReconciled"
	EventTypeInvoiceCancelled  = "InvoiceCancelled"
	EventTypeInvoiceRestored   = "InvoiceRestored"
	EventTypeInvoiceDeleted    = "InvoiceDeleted"
)

// PaymentRecordedEvent is raised when money enters the ledger
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	ClientID   uuid.UUID       `json:"client_id"`
	DocumentID *uuid.UUID      `json:"document_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.UserID),
		ClientID:        p.ClientID,
		DocumentID:      p.DocumentID,
		Amount:          p.Amount,
	}
}

// PaymentsAllocatedEvent is raised after an allocation plan was committed
type PaymentsAllocatedEvent struct {
	shared.BaseDomainEvent
	ClientID    uuid.UUID       `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentIDs  []uuid.UUID     `json:"payment_ids"`
	RemainderID *uuid.UUID      `json:"remainder_id,omitempty"`
}

// NewPaymentsAllocatedEvent creates a PaymentsAllocatedEvent from a committed plan
func NewPaymentsAllocatedEvent(plan *AllocationPlan) *PaymentsAllocatedEvent {
	ids := make([]uuid.UUID, 0, len(plan.Allocated))
	for _, p := range plan.Allocated {
		ids = append(ids, p.ID)
	}
	var remainderID *uuid.UUID
	if plan.Remainder != nil {
		id := plan.Remainder.ID
		remainderID = &id
	}
	return &PaymentsAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentsAllocated, AggregateTypeDocument, plan.DocumentID, plan.UserID),
		ClientID:        plan.ClientID,
		Amount:          plan.Amount,
		PaymentIDs:      ids,
		RemainderID:     remainderID,
	}
}

// PaymentDeletedEvent is raised when a payment row is removed
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	ClientID   uuid.UUID       `json:"client_id"`
	DocumentID *uuid.UUID      `json:"document_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewPaymentDeletedEvent creates a PaymentDeletedEvent
func NewPaymentDeletedEvent(p *Payment) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, AggregateTypePayment, p.ID, p.UserID),
		ClientID:        p.ClientID,
		DocumentID:      p.DocumentID,
		Amount:          p.Amount,
	}
}

// InvoiceReconciledEvent is raised when the stored totals of an invoice changed
type InvoiceReconciledEvent struct {
	shared.BaseDomainEvent
	Number    string          `json:"number"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Paid      bool            `json:"paid"`
}

// NewInvoiceReconciledEvent creates an InvoiceReconciledEvent
func NewInvoiceReconciledEvent(doc *Document) *InvoiceReconciledEvent {
	return &InvoiceReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceReconciled, AggregateTypeDocument, doc.ID, doc.UserID),
		Number:          doc.Number,
		TotalPaid:       doc.TotalPaid,
		Paid:            doc.Paid,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	Number        string       `json:"number"`
	Disposition   *Disposition `json:"disposition,omitempty"`
	ReleasedCount int          `json:"released_count"`
}

// NewInvoiceCancelledEvent creates an InvoiceCancelledEvent
func NewInvoiceCancelledEvent(doc *Document, disposition *Disposition, released int) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeDocument, doc.ID, doc.UserID),
		Number:          doc.Number,
		Disposition:     disposition,
		ReleasedCount:   released,
	}
}

// InvoiceRestoredEvent is raised when a cancelled invoice is restored
type InvoiceRestoredEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewInvoiceRestoredEvent creates an InvoiceRestoredEvent
func NewInvoiceRestoredEvent(doc *Document) *InvoiceRestoredEvent {
	return &InvoiceRestoredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceRestored, AggregateTypeDocument, doc.ID, doc.UserID),
		Number:          doc.Number,
	}
}

// InvoiceDeletedEvent is raised when a cancelled invoice is physically removed.
// OrphanedPayments counts payment rows left pointing at the removed id.
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
	Number           string `json:"number"`
	OrphanedPayments int    `json:"orphaned_payments"`
}

// NewInvoiceDeletedEvent creates an InvoiceDeletedEvent
func NewInvoiceDeletedEvent(doc *Document, orphaned int) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, AggregateTypeDocument, doc.ID, doc.UserID),
		Number:           doc.Number,
		OrphanedPayments: orphaned,
	}
}
