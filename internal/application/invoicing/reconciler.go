package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetryPolicy controls ReconcileWithRetry
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is the first delay; it doubles after every failed attempt
	Backoff time.Duration
}

// DefaultRetryPolicy returns the default reconcile retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 50 * time.Millisecond}
}

// InvoiceReconciler recomputes the derived payment fields of an invoice from its payments
type InvoiceReconciler struct {
	documents invoicing.DocumentRepository
	payments  invoicing.PaymentRepository
	publisher shared.EventPublisher
	metrics   *telemetry.SettlementMetrics
	retry     RetryPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceReconciler creates a new InvoiceReconciler
func NewInvoiceReconciler(
	documents invoicing.DocumentRepository,
	payments invoicing.PaymentRepository,
	publisher shared.EventPublisher,
	metrics *telemetry.SettlementMetrics,
	retry RetryPolicy,
	log *zap.Logger,
) *InvoiceReconciler {
	if publisher == nil {
		publisher = shared.NoopEventPublisher{}
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceReconciler{
		documents: documents,
		payments:  payments,
		publisher: publisher,
		metrics:   metrics,
		retry:     retry,
		logger:    log,
		now:       time.Now,
	}
}

// Reconcile sets totalPaid to the sum of the payments pointing at the invoice
// and derives paid from it. Only the payment columns are written, so running
// it twice yields the same numbers.
func (r *InvoiceReconciler) Reconcile(ctx context.Context, userID, documentID uuid.UUID) (*invoicing.Document, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID)

	doc, err := r.documents.FindByID(ctx, userID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	totalPaid, err := r.payments.SumByDocument(ctx, userID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum invoice payments: %w", err)
	}
	totalPaid = invoicing.RoundMoney(totalPaid)

	previous := doc.TotalPaid
	wasPaid := doc.Paid
	at := r.now()
	doc.ApplyPaymentTotals(totalPaid, at)

	if err := r.documents.UpdatePaymentTotals(ctx, userID, documentID, doc.TotalPaid, doc.Paid, at); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to update invoice totals: %w", err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentNumber, doc.Number,
		telemetry.SpanAttrAmount, doc.TotalPaid,
	)
	if !previous.Equal(doc.TotalPaid) || wasPaid != doc.Paid {
		logger.WithLogger(ctx, r.logger).Info("invoice reconciled",
			zap.String("document_id", doc.ID.String()),
			zap.String("number", doc.Number),
			zap.String("total_paid", doc.TotalPaid.StringFixed(2)),
			zap.Bool("paid", doc.Paid),
		)
		publish(ctx, r.publisher, r.logger, invoicing.NewInvoiceReconciledEvent(doc))
	}
	return doc, nil
}

// ReconcileWithRetry runs Reconcile, retrying store failures and version
// conflicts with exponential backoff. Allocation writes are already committed
// when it runs, so retrying forward is the only way to repair the totals.
func (r *InvoiceReconciler) ReconcileWithRetry(ctx context.Context, userID, documentID uuid.UUID, operation string) (*invoicing.Document, error) {
	delay := r.retry.Backoff
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		doc, err := r.Reconcile(ctx, userID, documentID)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !shared.IsRetryable(err) || attempt == r.retry.MaxAttempts {
			break
		}

		r.metrics.RecordReconcileRetry(ctx, operation)
		logger.WithLogger(ctx, r.logger).Warn("reconcile failed, retrying",
			zap.String("document_id", documentID.String()),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

// publish hands events to the bus after the ledger write. A failure is
// logged and never undoes the write.
func publish(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, events ...shared.DomainEvent) {
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, log).Error("failed to publish domain events",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}
