package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// DocumentType distinguishes invoices from proformas
type DocumentType string

const (
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeProforma DocumentType = "proforma"
)

// IsValid checks if the document type is valid
func (t DocumentType) IsValid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeProforma
}

// String returns the string representation
func (t DocumentType) String() string {
	return string(t)
}

// NumberPrefix returns the prefix used in formatted document numbers
func (t DocumentType) NumberPrefix() string {
	if t == DocumentTypeProforma {
		return "PRO"
	}
	return "INV"
}

// SequenceKind returns the counter used to number documents of this type
func (t DocumentType) SequenceKind() SequenceKind {
	if t == DocumentTypeProforma {
		return SequenceKindProformaNumber
	}
	return SequenceKindInvoiceNumber
}

// DocumentStatus is the soft-delete flag of a document
type DocumentStatus string

const (
	DocumentStatusActive  DocumentStatus = "active"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// IsValid checks if the status is valid
func (s DocumentStatus) IsValid() bool {
	return s == DocumentStatusActive || s == DocumentStatusDeleted
}

// Disposition decides what happens to an invoice's payments when it is cancelled
type Disposition string

const (
	// DispositionMoveToClientAccount returns the payments to the client's unallocated pool
	DispositionMoveToClientAccount Disposition = "move_to_client_account"
	// DispositionKeepHistory leaves the payments on the cancelled invoice (reimbursed outside the app)
	DispositionKeepHistory Disposition = "keep_history"
)

// IsValid checks if the disposition is valid
func (d Disposition) IsValid() bool {
	return d == DispositionMoveToClientAccount || d == DispositionKeepHistory
}

// MovesPayments reports whether payments go back to the client account
func (d Disposition) MovesPayments() bool {
	return d == DispositionMoveToClientAccount
}

// PaymentState is the derived payment progress of an invoice
type PaymentState string

const (
	PaymentStateUnpaid  PaymentState = "unpaid"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePaid    PaymentState = "paid"
)

// DocumentItem is one billed line
type DocumentItem struct {
	Description string          `json:"description"`
	StockItemID *uuid.UUID      `json:"stock_item_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal returns quantity * unit price
func (i DocumentItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Mandays bills labour by the day
type Mandays struct {
	Days decimal.Decimal `json:"days"`
	Rate decimal.Decimal `json:"rate"`
}

// Cost returns days * rate
func (m Mandays) Cost() decimal.Decimal {
	return m.Days.Mul(m.Rate)
}

// DocumentContent is the editable part of a document
type DocumentContent struct {
	Date       time.Time
	Items      []DocumentItem
	LaborPrice decimal.Decimal
	Mandays    *Mandays
	Notes      string
	VATApplied bool
	VATRate    decimal.Decimal
}

// Validate checks content the way NewDocument and Revise do, including a
// positive total, without building a document
func (c DocumentContent) Validate() error {
	var scratch Document
	return scratch.setContent(c)
}

func (c DocumentContent) validate() error {
	if c.Date.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Document date is required")
	}
	for i, item := range c.Items {
		if strings.TrimSpace(item.Description) == "" {
			return shared.NewDomainErrorWithDetails(shared.CodeInvalidInput, "Item description cannot be empty", map[string]any{"item": i})
		}
		if !item.Quantity.IsPositive() {
			return shared.NewDomainErrorWithDetails(shared.CodeInvalidInput, "Item quantity must be positive", map[string]any{"item": i})
		}
		if item.UnitPrice.IsNegative() {
			return shared.NewDomainErrorWithDetails(shared.CodeInvalidInput, "Item unit price cannot be negative", map[string]any{"item": i})
		}
	}
	if c.LaborPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Labor price cannot be negative")
	}
	if c.Mandays != nil && (c.Mandays.Days.IsNegative() || c.Mandays.Rate.IsNegative()) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Mandays cannot be negative")
	}
	if c.VATRate.IsNegative() || c.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError(shared.CodeInvalidInput, "VAT rate must be between 0 and 1")
	}
	return nil
}

// Document is an invoice or a proforma.
// TotalPaid and Paid are derived from the payments pointing at the document
// and are written only through ApplyPaymentTotals.
type Document struct {
	shared.OwnedAggregateRoot
	Type       DocumentType
	Number     string
	Sequence   int64
	Date       time.Time
	Client     ClientSnapshot
	Items      []DocumentItem
	LaborPrice decimal.Decimal
	Mandays    *Mandays
	Notes      string
	VATApplied bool
	VATRate    decimal.Decimal

	Subtotal  decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal

	TotalPaid       decimal.Decimal
	Paid            bool
	LastPaymentDate *time.Time

	Cancelled                    bool
	CancelledAt                  *time.Time
	PaymentsMovedToClientAccount *bool

	Status          DocumentStatus
	Converted       bool
	ConvertedToID   *uuid.UUID
	ConvertedFromID *uuid.UUID
}

// NewDocument creates a document numbered by the caller from the matching sequence
func NewDocument(userID uuid.UUID, docType DocumentType, number string, sequence int64, client ClientSnapshot, content DocumentContent) (*Document, error) {
	if !docType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid document type")
	}
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Document number cannot be empty")
	}
	if client.ClientID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Document client is required")
	}

	doc := &Document{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		Type:               docType,
		Number:             number,
		Sequence:           sequence,
		Client:             client,
		TotalPaid:          decimal.Zero,
		Status:             DocumentStatusActive,
	}
	if err := doc.setContent(content); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) setContent(content DocumentContent) error {
	if err := content.validate(); err != nil {
		return err
	}

	d.Date = content.Date
	d.Items = append([]DocumentItem(nil), content.Items...)
	d.LaborPrice = RoundMoney(content.LaborPrice)
	d.Mandays = content.Mandays
	d.Notes = content.Notes
	d.VATApplied = content.VATApplied
	d.VATRate = content.VATRate
	d.recalculate()

	if !d.Total.IsPositive() {
		return newInvalidAmount("Document total must be positive", d.Total)
	}
	return nil
}

// recalculate derives subtotal, VAT and total from the content fields
func (d *Document) recalculate() {
	subtotal := d.LaborPrice
	for _, item := range d.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	if d.Mandays != nil {
		subtotal = subtotal.Add(d.Mandays.Cost())
	}
	d.Subtotal = RoundMoney(subtotal)

	d.VATAmount = decimal.Zero
	if d.VATApplied {
		d.VATAmount = RoundMoney(d.Subtotal.Mul(d.VATRate))
	}
	d.Total = d.Subtotal.Add(d.VATAmount)
	d.Paid = d.TotalPaid.GreaterThanOrEqual(d.Total)
}

// Revise replaces the editable content and recomputes the totals.
// The paid flag follows the new total immediately; the caller re-reconciles afterwards.
func (d *Document) Revise(content DocumentContent) error {
	if d.Status == DocumentStatusDeleted {
		return errInvalidState("Document %s is deleted", d.Number)
	}
	if d.Cancelled {
		return errInvalidState("Document %s is cancelled", d.Number)
	}
	if d.Converted {
		return errInvalidState("Proforma %s was already converted", d.Number)
	}
	if err := d.setContent(content); err != nil {
		return err
	}
	d.Touch()
	return nil
}

// IsInvoice reports whether this is an invoice
func (d *Document) IsInvoice() bool {
	return d.Type == DocumentTypeInvoice
}

// IsProforma reports whether this is a proforma
func (d *Document) IsProforma() bool {
	return d.Type == DocumentTypeProforma
}

// Outstanding returns what the invoice still owes, never negative
func (d *Document) Outstanding() decimal.Decimal {
	outstanding := d.Total.Sub(d.TotalPaid)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// PaymentState derives unpaid/partial/paid from the totals
func (d *Document) PaymentState() PaymentState {
	switch {
	case d.Paid:
		return PaymentStatePaid
	case d.TotalPaid.IsPositive():
		return PaymentStatePartial
	default:
		return PaymentStateUnpaid
	}
}

// EnsureAcceptsPayments checks that payments may be allocated to the document
func (d *Document) EnsureAcceptsPayments() error {
	if !d.IsInvoice() {
		return errInvalidState("Document %s is a proforma and cannot receive payments", d.Number)
	}
	if d.Status == DocumentStatusDeleted {
		return errInvalidState("Invoice %s is deleted", d.Number)
	}
	if d.Cancelled {
		return errInvalidState("Invoice %s is cancelled", d.Number)
	}
	return nil
}

// ApplyPaymentTotals stores the reconciled payment sum
func (d *Document) ApplyPaymentTotals(totalPaid decimal.Decimal, at time.Time) {
	d.TotalPaid = totalPaid
	d.Paid = totalPaid.GreaterThanOrEqual(d.Total)
	d.LastPaymentDate = &at
	d.UpdatedAt = at
}

// Cancel flags the invoice as cancelled. An invoice that holds payments needs a disposition.
func (d *Document) Cancel(disposition *Disposition, at time.Time) error {
	if !d.IsInvoice() {
		return errInvalidState("Only invoices can be cancelled; delete proforma %s instead", d.Number)
	}
	if d.Cancelled {
		return errInvalidState("Invoice %s is already cancelled", d.Number)
	}
	if d.Status == DocumentStatusDeleted {
		return errInvalidState("Invoice %s is deleted", d.Number)
	}

	d.PaymentsMovedToClientAccount = nil
	if d.TotalPaid.IsPositive() {
		if disposition == nil {
			return shared.ErrDispositionRequired
		}
		if !disposition.IsValid() {
			return shared.NewDomainError(shared.CodeInvalidInput, "Invalid cancel disposition")
		}
		moved := disposition.MovesPayments()
		d.PaymentsMovedToClientAccount = &moved
	}

	d.Cancelled = true
	d.CancelledAt = &at
	d.UpdatedAt = at
	return nil
}

// Restore brings a cancelled invoice back. Payments moved to the client account stay there.
func (d *Document) Restore() error {
	if !d.Cancelled {
		return errInvalidState("Invoice %s is not cancelled", d.Number)
	}
	d.Cancelled = false
	d.CancelledAt = nil
	d.PaymentsMovedToClientAccount = nil
	d.Touch()
	return nil
}

// EnsurePermanentlyDeletable checks that only cancelled invoices are physically removed
func (d *Document) EnsurePermanentlyDeletable() error {
	if !d.IsInvoice() {
		return errInvalidState("Document %s is not an invoice", d.Number)
	}
	if !d.Cancelled {
		return errInvalidState("Invoice %s must be cancelled before it can be permanently deleted", d.Number)
	}
	return nil
}

// MarkConverted records that the proforma produced invoiceID
func (d *Document) MarkConverted(invoiceID uuid.UUID) error {
	if err := d.EnsureConvertible(); err != nil {
		return err
	}
	d.Converted = true
	d.ConvertedToID = &invoiceID
	d.Touch()
	return nil
}

// EnsureConvertible checks that the proforma can still become an invoice
func (d *Document) EnsureConvertible() error {
	if !d.IsProforma() {
		return errInvalidState("Document %s is not a proforma", d.Number)
	}
	if d.Status == DocumentStatusDeleted {
		return errInvalidState("Proforma %s is deleted", d.Number)
	}
	if d.Converted {
		return errInvalidState("Proforma %s was already converted", d.Number)
	}
	return nil
}

// Content returns the editable part, used to copy a proforma into an invoice
func (d *Document) Content() DocumentContent {
	return DocumentContent{
		Date:       d.Date,
		Items:      append([]DocumentItem(nil), d.Items...),
		LaborPrice: d.LaborPrice,
		Mandays:    d.Mandays,
		Notes:      d.Notes,
		VATApplied: d.VATApplied,
		VATRate:    d.VATRate,
	}
}

// SoftDelete hides a proforma
func (d *Document) SoftDelete() error {
	if !d.IsProforma() {
		return errInvalidState("Invoices are cancelled, not deleted")
	}
	if d.Status == DocumentStatusDeleted {
		return errInvalidState("Proforma %s is already deleted", d.Number)
	}
	d.Status = DocumentStatusDeleted
	d.Touch()
	return nil
}
