package invoicing

import (
	"bytes"
	"container/heap"

	"github.com/shopspring/decimal"
)

// PaymentQueue is a min-heap of a client's unallocated payments, oldest first.
// Ties on payment date fall back to creation time, then to the payment id,
// so the allocation order is deterministic.
type PaymentQueue struct {
	items paymentHeap
	total decimal.Decimal
}

// NewPaymentQueue builds a queue from the given payments, skipping allocated ones
func NewPaymentQueue(payments []*Payment) *PaymentQueue {
	q := &PaymentQueue{
		items: make(paymentHeap, 0, len(payments)),
		total: decimal.Zero,
	}
	for _, p := range payments {
		if p == nil || p.IsAllocated() {
			continue
		}
		q.items = append(q.items, p)
		q.total = q.total.Add(p.Amount)
	}
	heap.Init(&q.items)
	return q
}

// Len returns the number of queued payments
func (q *PaymentQueue) Len() int {
	return q.items.Len()
}

// Total returns the sum of the queued amounts
func (q *PaymentQueue) Total() decimal.Decimal {
	return q.total
}

// Push adds an unallocated payment
func (q *PaymentQueue) Push(p *Payment) {
	heap.Push(&q.items, p)
	q.total = q.total.Add(p.Amount)
}

// Pop removes and returns the oldest payment, or nil when empty
func (q *PaymentQueue) Pop() *Payment {
	if q.items.Len() == 0 {
		return nil
	}
	p := heap.Pop(&q.items).(*Payment)
	q.total = q.total.Sub(p.Amount)
	return p
}

// Peek returns the oldest payment without removing it
func (q *PaymentQueue) Peek() *Payment {
	if q.items.Len() == 0 {
		return nil
	}
	return q.items[0]
}

// Ordered returns the queued payments in allocation order without consuming the queue
func (q *PaymentQueue) Ordered() []*Payment {
	clone := &PaymentQueue{
		items: append(paymentHeap(nil), q.items...),
		total: q.total,
	}
	ordered := make([]*Payment, 0, clone.Len())
	for clone.Len() > 0 {
		ordered = append(ordered, clone.Pop())
	}
	return ordered
}

type paymentHeap []*Payment

func (h paymentHeap) Len() int { return len(h) }

func (h paymentHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.PaymentDate.Equal(b.PaymentDate) {
		return a.PaymentDate.Before(b.PaymentDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (h paymentHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *paymentHeap) Push(x any) {
	*h = append(*h, x.(*Payment))
}

func (h *paymentHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}
