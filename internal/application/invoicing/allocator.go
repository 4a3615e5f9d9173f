package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AllocationResult describes a committed allocation
type AllocationResult struct {
	ClientID   uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	// Available is the unallocated balance before the allocation
	Available decimal.Decimal
	Allocated []*invoicing.Payment
	Remainder *invoicing.Payment

	plan *invoicing.AllocationPlan
}

// DirectPayment is fresh money entering the ledger.
// A nil DocumentID leaves the payment on the client account.
type DirectPayment struct {
	ClientID    uuid.UUID
	DocumentID  *uuid.UUID
	Amount      decimal.Decimal
	Method      invoicing.PaymentMethod
	PaymentDate time.Time
	Reference   string
	Notes       string
}

// PaymentAllocator moves money between a client's unallocated pool and invoices.
// Callers serialize Allocate and Deallocate per client; the version guard in
// the repository still rejects any write that lost a race.
type PaymentAllocator struct {
	payments invoicing.PaymentRepository
	metrics  *telemetry.SettlementMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentAllocator creates a new PaymentAllocator
func NewPaymentAllocator(payments invoicing.PaymentRepository, metrics *telemetry.SettlementMetrics, log *zap.Logger) *PaymentAllocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentAllocator{
		payments: payments,
		metrics:  metrics,
		logger:   log,
		now:      time.Now,
	}
}

// Allocate applies amount of the client's unallocated balance to documentID, oldest payment first
func (a *PaymentAllocator) Allocate(ctx context.Context, userID, clientID, documentID uuid.UUID, amount decimal.Decimal) (*AllocationResult, error) {
	return a.allocate(ctx, userID, clientID, documentID, "", amount)
}

func (a *PaymentAllocator) allocate(ctx context.Context, userID, clientID, documentID uuid.UUID, documentNumber string, amount decimal.Decimal) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocator", "allocate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, clientID,
		telemetry.SpanAttrDocumentID, documentID,
		telemetry.SpanAttrAmount, amount,
	)

	if !amount.IsPositive() {
		err := invoicing.ErrNonPositiveAmount(amount)
		telemetry.RecordError(span, err)
		return nil, err
	}

	candidates, err := a.payments.FindUnallocatedByClient(ctx, userID, clientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unallocated payments: %w", err)
	}
	queue := invoicing.NewPaymentQueue(paymentPtrs(candidates))
	telemetry.SetAttributes(span, telemetry.SpanAttrBalance, queue.Total())

	label := documentNumber
	if label == "" {
		label = documentID.String()
	}
	plan, err := invoicing.PlanAllocation(queue, documentID, amount, a.now(), "Allocated to invoice "+label)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := a.payments.ApplyAllocation(ctx, plan); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	a.metrics.RecordAllocation(ctx, plan.Amount, plan.Split())
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAllocatedCount, len(plan.Allocated),
		telemetry.SpanAttrSplit, plan.Split(),
	)
	if plan.Split() {
		telemetry.AddEvent(span, "payment_split", telemetry.SpanAttrPaymentID, plan.Remainder.ID)
	}
	logger.WithLogger(ctx, a.logger).Info("allocation committed",
		zap.String("client_id", clientID.String()),
		zap.String("document_id", documentID.String()),
		zap.String("amount", plan.Amount.StringFixed(2)),
		zap.Int("payments", len(plan.Allocated)),
		zap.Bool("split", plan.Split()),
	)

	return &AllocationResult{
		ClientID:   clientID,
		DocumentID: documentID,
		Amount:     plan.Amount,
		Available:  plan.Available,
		Allocated:  plan.Allocated,
		Remainder:  plan.Remainder,
		plan:       plan,
	}, nil
}

// AddDirectPayment records a single payment, settled to the document when one is given
func (a *PaymentAllocator) AddDirectPayment(ctx context.Context, userID uuid.UUID, in DirectPayment) (*invoicing.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocator", "add_direct_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, in.ClientID,
		telemetry.SpanAttrAmount, in.Amount,
	)

	payment, err := invoicing.NewPayment(userID, in.ClientID, in.Amount, in.Method, in.PaymentDate, in.Reference, in.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.DocumentID != nil {
		if err := payment.AllocateTo(*in.DocumentID, a.now(), ""); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, *in.DocumentID)
	}

	if err := a.payments.Create(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID)
	logger.WithLogger(ctx, a.logger).Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("client_id", payment.ClientID.String()),
		zap.Bool("settled_to_document", payment.SettledToDocument),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	return payment, nil
}

// Deallocate returns every payment of documentID to the client's pool when
// moveToClientAccount is set, and reports how many were released.
// With moveToClientAccount false nothing is written.
func (a *PaymentAllocator) Deallocate(ctx context.Context, userID, documentID uuid.UUID, documentNumber string, moveToClientAccount bool) (int, error) {
	if !moveToClientAccount {
		return 0, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "allocator", "deallocate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID)

	payments, err := a.payments.FindByDocument(ctx, userID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load invoice payments: %w", err)
	}
	if len(payments) == 0 {
		return 0, nil
	}

	at := a.now()
	released := paymentPtrs(payments)
	for _, p := range released {
		if err := p.Release(at, "Moved to client account from cancelled invoice "+documentNumber); err != nil {
			telemetry.RecordError(span, err)
			return 0, err
		}
	}
	if err := a.payments.SaveBatch(ctx, released); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to release payments: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAllocatedCount, len(released))
	logger.WithLogger(ctx, a.logger).Info("payments moved to client account",
		zap.String("document_id", documentID.String()),
		zap.Int("payments", len(released)),
	)
	return len(released), nil
}

func paymentPtrs(payments []invoicing.Payment) []*invoicing.Payment {
	ptrs := make([]*invoicing.Payment, len(payments))
	for i := range payments {
		ptrs[i] = &payments[i]
	}
	return ptrs
}
