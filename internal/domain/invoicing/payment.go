package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// PaymentMethod represents how the money was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

const splitReferenceSuffix = " (split)"

// Payment is money received from a client. It either sits in the client's
// unallocated pool (DocumentID nil) or is allocated to one invoice.
type Payment struct {
	shared.OwnedAggregateRoot
	ClientID          uuid.UUID
	DocumentID        *uuid.UUID
	Amount            decimal.Decimal
	PaymentDate       time.Time
	Method            PaymentMethod
	Reference         string
	Notes             string
	SettledToDocument bool
	SettledAt         *time.Time
	SplitFromID       *uuid.UUID
}

// NewPayment creates an unallocated payment
func NewPayment(userID, clientID uuid.UUID, amount decimal.Decimal, method PaymentMethod, paymentDate time.Time, reference, notes string) (*Payment, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment client is required")
	}
	amount = RoundMoney(amount)
	if err := validatePositiveAmount(amount); err != nil {
		return nil, err
	}
	if method == "" {
		method = PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid payment method")
	}
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	return &Payment{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		ClientID:           clientID,
		Amount:             amount,
		PaymentDate:        paymentDate,
		Method:             method,
		Reference:          strings.TrimSpace(reference),
		Notes:              strings.TrimSpace(notes),
	}, nil
}

// IsAllocated reports whether the payment is tied to a document
func (p *Payment) IsAllocated() bool {
	return p.DocumentID != nil
}

// AllocateTo ties the payment to a document
func (p *Payment) AllocateTo(documentID uuid.UUID, at time.Time, note string) error {
	if p.IsAllocated() {
		return errInvalidState("Payment %s is already allocated", p.ID)
	}
	p.DocumentID = &documentID
	p.SettledToDocument = true
	p.SettledAt = &at
	p.AppendNote(at, note)
	p.UpdatedAt = at
	return nil
}

// Release returns the payment to the client's unallocated pool
func (p *Payment) Release(at time.Time, note string) error {
	if !p.IsAllocated() {
		return errInvalidState("Payment %s is not allocated", p.ID)
	}
	p.DocumentID = nil
	p.SettledToDocument = false
	p.SettledAt = nil
	p.AppendNote(at, note)
	p.UpdatedAt = at
	return nil
}

// Split shrinks the payment to keep and returns a new unallocated payment
// holding the difference. The two amounts always sum to the original.
func (p *Payment) Split(keep decimal.Decimal, at time.Time) (*Payment, error) {
	if p.IsAllocated() {
		return nil, errInvalidState("Allocated payment %s cannot be split", p.ID)
	}
	if !keep.IsPositive() || keep.GreaterThanOrEqual(p.Amount) {
		return nil, newInvalidAmount("Split amount must be between zero and the payment amount", keep)
	}

	remainder := &Payment{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(p.UserID),
		ClientID:           p.ClientID,
		Amount:             p.Amount.Sub(keep),
		PaymentDate:        p.PaymentDate,
		Method:             p.Method,
		Reference:          splitReference(p.Reference),
		Notes:              p.Notes,
		SplitFromID:        &p.ID,
	}
	remainder.CreatedAt = at
	remainder.UpdatedAt = at
	remainder.AppendNote(at, "Split remainder of payment "+p.ID.String())

	p.Amount = keep
	p.UpdatedAt = at
	return remainder, nil
}

func splitReference(reference string) string {
	if reference == "" {
		return strings.TrimSpace(splitReferenceSuffix)
	}
	if strings.HasSuffix(reference, splitReferenceSuffix) {
		return reference
	}
	return reference + splitReferenceSuffix
}

// AppendNote adds a dated audit line to the notes
func (p *Payment) AppendNote(at time.Time, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	line := "[" + at.Format("2006-01-02 15:04") + "] " + note
	if p.Notes == "" {
		p.Notes = line
		return
	}
	p.Notes = p.Notes + "\n" + line
}
