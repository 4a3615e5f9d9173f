package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationPlan is the set of payment writes that moves Amount of a client's
// unallocated balance onto one document. Allocated holds the existing rows
// (already mutated, still carrying the version they were read with) and
// Remainder the row created when the last consumed payment had to be split.
// The plan must be committed as one atomic batch.
type AllocationPlan struct {
	UserID     uuid.UUID
	ClientID   uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Available  decimal.Decimal
	Allocated  []*Payment
	Remainder  *Payment
	PlannedAt  time.Time
}

// Split reports whether the plan splits a payment
func (p *AllocationPlan) Split() bool {
	return p.Remainder != nil
}

// AllocatedTotal returns the sum moved onto the document
func (p *AllocationPlan) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, payment := range p.Allocated {
		total = total.Add(payment.Amount)
	}
	return total
}

// PlanAllocation consumes the queue oldest-first until amount is covered,
// splitting the final payment when it overshoots. It fails closed with
// INSUFFICIENT_BALANCE before touching any payment when the queue cannot cover amount.
func PlanAllocation(queue *PaymentQueue, documentID uuid.UUID, amount decimal.Decimal, at time.Time, note string) (*AllocationPlan, error) {
	amount = RoundMoney(amount)
	if err := validatePositiveAmount(amount); err != nil {
		return nil, err
	}

	available := queue.Total()
	if available.LessThan(amount) {
		return nil, ErrInsufficientBalance(available, amount)
	}

	plan := &AllocationPlan{
		DocumentID: documentID,
		Amount:     amount,
		Available:  available,
		PlannedAt:  at,
	}

	remaining := amount
	for remaining.IsPositive() {
		payment := queue.Pop()
		if payment == nil {
			// unreachable while Total() is kept in sync with the heap
			return nil, ErrInsufficientBalance(available, amount)
		}
		if plan.UserID == uuid.Nil {
			plan.UserID = payment.UserID
			plan.ClientID = payment.ClientID
		}

		if payment.Amount.GreaterThan(remaining) {
			remainder, err := payment.Split(remaining, at)
			if err != nil {
				return nil, err
			}
			plan.Remainder = remainder
		}

		if err := payment.AllocateTo(documentID, at, note); err != nil {
			return nil, err
		}
		plan.Allocated = append(plan.Allocated, payment)
		remaining = remaining.Sub(payment.Amount)
	}

	return plan, nil
}
