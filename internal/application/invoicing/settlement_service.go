package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settlement operation names used for spans, profiling labels and metrics
const (
	OpAddPayment          = "add_payment"
	OpSettleInvoice       = "settle_invoice"
	OpCancelInvoice       = "cancel_invoice"
	OpRestoreInvoice      = "restore_invoice"
	OpDeleteInvoice       = "delete_invoice"
	OpDeletePayment       = "delete_payment"
	OpRecordClientPayment = "record_client_payment"
	OpReconcileClient     = "reconcile_client"
	OpResumeCancellation  = "resume_cancellation"
)

// SettlementConfig holds the lock and fan-out settings of the orchestrator
type SettlementConfig struct {
	// ClientLock guards every read-then-write of a client's unallocated pool
	ClientLock shared.LockConfig
	// InflightTTL bounds the per-invoice double-submit guard
	InflightTTL time.Duration
	// ReconcileConcurrency limits parallel reconciles in ReconcileClient
	ReconcileConcurrency int
}

// DefaultSettlementConfig returns the default orchestrator settings
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		ClientLock:           shared.DefaultLockConfig(),
		InflightTTL:          30 * time.Second,
		ReconcileConcurrency: 4,
	}
}

// SettlementOption configures a SettlementService
type SettlementOption func(*SettlementService)

// WithSettlementLogger sets the logger
func WithSettlementLogger(log *zap.Logger) SettlementOption {
	return func(s *SettlementService) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithSettlementMetrics sets the metric instruments
func WithSettlementMetrics(metrics *telemetry.SettlementMetrics) SettlementOption {
	return func(s *SettlementService) {
		s.metrics = metrics
	}
}

// WithEventPublisher sets where committed settlement steps are announced
func WithEventPublisher(publisher shared.EventPublisher) SettlementOption {
	return func(s *SettlementService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) SettlementOption {
	return func(s *SettlementService) {
		if now != nil {
			s.now = now
		}
	}
}

// SettlementService orchestrates the payment workflows of invoices.
// Every operation that reads and then writes a client's unallocated pool
// holds the client lock; AddPayment and SettleInvoiceFromBalance also hold a
// per-invoice in-flight guard so a double submit fails fast.
type SettlementService struct {
	documents  invoicing.DocumentRepository
	payments   invoicing.PaymentRepository
	clients    invoicing.ClientRepository
	locks      shared.LockStore
	allocator  *PaymentAllocator
	reconciler *InvoiceReconciler
	cfg        SettlementConfig
	publisher  shared.EventPublisher
	metrics    *telemetry.SettlementMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	documents invoicing.DocumentRepository,
	payments invoicing.PaymentRepository,
	clients invoicing.ClientRepository,
	locks shared.LockStore,
	allocator *PaymentAllocator,
	reconciler *InvoiceReconciler,
	cfg SettlementConfig,
	opts ...SettlementOption,
) *SettlementService {
	if cfg.ReconcileConcurrency <= 0 {
		cfg.ReconcileConcurrency = 1
	}
	s := &SettlementService{
		documents:  documents,
		payments:   payments,
		clients:    clients,
		locks:      locks,
		allocator:  allocator,
		reconciler: reconciler,
		cfg:        cfg,
		publisher:  shared.NoopEventPublisher{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.allocator.now = s.now
	s.reconciler.now = s.now
	return s
}

// ClientLockKey is the lock key guarding a client's unallocated pool
func ClientLockKey(clientID uuid.UUID) string {
	return "lock:client:" + clientID.String()
}

// InflightKey is the double-submit guard key of an invoice
func InflightKey(invoiceID uuid.UUID) string {
	return "inflight:invoice:" + invoiceID.String()
}

// run wraps one orchestrator operation in a span, profiling labels and metrics
func (s *SettlementService) run(ctx context.Context, op string, labels map[string]string, attrs []any, fn func(context.Context, trace.Span) error) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", op)
	defer span.End()
	telemetry.SetAttributes(span, attrs...)

	started := time.Now()
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(op, labels), func(c context.Context) {
		err = fn(c, span)
	})
	s.metrics.RecordOperation(ctx, op, started, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

func (s *SettlementService) lockClient(ctx context.Context, clientID uuid.UUID, op string) (func(), error) {
	release, err := shared.Acquire(ctx, s.locks, ClientLockKey(clientID), s.cfg.ClientLock)
	if err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			s.metrics.RecordLockContention(ctx, op)
		}
		return nil, err
	}
	return release, nil
}

func (s *SettlementService) guardInvoice(ctx context.Context, invoiceID uuid.UUID, op string) (func(), error) {
	release, err := shared.TryAcquireOnce(ctx, s.locks, InflightKey(invoiceID), s.cfg.InflightTTL)
	if err != nil {
		if errors.Is(err, shared.ErrOperationInProgress) {
			s.metrics.RecordLockContention(ctx, op)
		}
		return nil, err
	}
	return release, nil
}

func (s *SettlementService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// AddPayment records a payment against an invoice, either as fresh money or
// drawn from the client's unallocated balance, then reconciles the invoice.
func (s *SettlementService) AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, req AddPaymentRequest) (*SettlementResponse, error) {
	source := req.Source
	if source == "" {
		source = PaymentSourceNew
	}

	var resp *SettlementResponse
	err := s.run(ctx, OpAddPayment, map[string]string{"source": string(source)},
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrDocumentID, invoiceID, telemetry.SpanAttrAmount, req.Amount},
		func(ctx context.Context, _ trace.Span) error {
			var err error
			resp, err = s.addPayment(ctx, userID, invoiceID, source, req)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SettlementService) addPayment(ctx context.Context, userID, invoiceID uuid.UUID, source PaymentSource, req AddPaymentRequest) (*SettlementResponse, error) {
	amount := invoicing.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, invoicing.ErrNonPositiveAmount(req.Amount)
	}
	if source != PaymentSourceNew && source != PaymentSourceClientAccount {
		return nil, shared.NewDomainErrorWithDetails(shared.CodeInvalidInput, "Invalid payment source", map[string]any{"source": string(source)})
	}

	release, err := s.guardInvoice(ctx, invoiceID, OpAddPayment)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.documents.FindByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := doc.EnsureAcceptsPayments(); err != nil {
		return nil, err
	}
	clientID := doc.Client.ClientID
	resp := &SettlementResponse{}

	switch source {
	case PaymentSourceClientAccount:
		unlock, err := s.lockClient(ctx, clientID, OpAddPayment)
		if err != nil {
			return nil, err
		}
		defer unlock()

		result, err := s.allocator.allocate(ctx, userID, clientID, doc.ID, doc.Number, amount)
		if err != nil {
			return nil, err
		}
		publish(ctx, s.publisher, s.logger, invoicing.NewPaymentsAllocatedEvent(result.plan))
		resp.Allocation = toAllocationResponse(result)

	default:
		paymentDate := s.now()
		if req.PaymentDate != nil {
			paymentDate = *req.PaymentDate
		}
		payment, err := s.allocator.AddDirectPayment(ctx, userID, DirectPayment{
			ClientID:    clientID,
			DocumentID:  &doc.ID,
			Amount:      amount,
			Method:      invoicing.PaymentMethod(req.Method),
			PaymentDate: paymentDate,
			Reference:   req.Reference,
			Notes:       req.Notes,
		})
		if err != nil {
			return nil, err
		}
		publish(ctx, s.publisher, s.logger, invoicing.NewPaymentRecordedEvent(payment))
		paymentResp := ToPaymentResponse(payment)
		resp.Payment = &paymentResp
	}

	reconciled, err := s.reconciler.ReconcileWithRetry(ctx, userID, doc.ID, OpAddPayment)
	if err != nil {
		s.log(ctx).Error("payment committed but invoice totals are stale",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to reconcile invoice %s: %w", doc.Number, err)
	}
	invoiceResp := ToDocumentResponse(reconciled)
	resp.Invoice = &invoiceResp

	if resp.ClientBalance, err = s.payments.SumUnallocatedByClient(ctx, userID, clientID); err != nil {
		return nil, fmt.Errorf("failed to compute client balance: %w", err)
	}
	return resp, nil
}

// SettleInvoiceFromBalance moves amount of the client's unallocated balance
// onto the invoice. Partial settlement is allowed; the amount may exceed
// neither the invoice outstanding nor the balance.
func (s *SettlementService) SettleInvoiceFromBalance(ctx context.Context, userID, invoiceID uuid.UUID, req SettleInvoiceRequest) (*SettlementResponse, error) {
	var resp *SettlementResponse
	err := s.run(ctx, OpSettleInvoice, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrClientID, req.ClientID, telemetry.SpanAttrDocumentID, invoiceID, telemetry.SpanAttrAmount, req.Amount},
		func(ctx context.Context, span trace.Span) error {
			var err error
			resp, err = s.settleInvoice(ctx, span, userID, invoiceID, req)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SettlementService) settleInvoice(ctx context.Context, span trace.Span, userID, invoiceID uuid.UUID, req SettleInvoiceRequest) (*SettlementResponse, error) {
	amount := invoicing.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, invoicing.ErrNonPositiveAmount(req.Amount)
	}

	release, err := s.guardInvoice(ctx, invoiceID, OpSettleInvoice)
	if err != nil {
		return nil, err
	}
	defer release()

	unlock, err := s.lockClient(ctx, req.ClientID, OpSettleInvoice)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.documents.FindByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := doc.EnsureAcceptsPayments(); err != nil {
		return nil, err
	}
	if doc.Client.ClientID != req.ClientID {
		return nil, shared.NewDomainErrorWithDetails(shared.CodeInvalidState,
			fmt.Sprintf("Invoice %s does not belong to this client", doc.Number),
			map[string]any{"client_id": req.ClientID.String()})
	}

	paidSoFar, err := s.payments.SumByDocument(ctx, userID, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum invoice payments: %w", err)
	}
	outstanding := doc.Total.Sub(paidSoFar)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	if amount.GreaterThan(outstanding) {
		return nil, invoicing.ErrAmountExceedsOutstanding(amount, outstanding)
	}

	balance, err := s.payments.SumUnallocatedByClient(ctx, userID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute client balance: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrBalance, balance)
	if amount.GreaterThan(balance) {
		return nil, invoicing.ErrInsufficientBalance(balance, amount)
	}

	result, err := s.allocator.allocate(ctx, userID, req.ClientID, doc.ID, doc.Number, amount)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, invoicing.NewPaymentsAllocatedEvent(result.plan))

	reconciled, err := s.reconciler.ReconcileWithRetry(ctx, userID, doc.ID, OpSettleInvoice)
	if err != nil {
		s.log(ctx).Error("settlement committed but invoice totals are stale",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to reconcile invoice %s: %w", doc.Number, err)
	}

	invoiceResp := ToDocumentResponse(reconciled)
	return &SettlementResponse{
		Invoice:       &invoiceResp,
		Allocation:    toAllocationResponse(result),
		ClientBalance: balance.Sub(result.Amount),
	}, nil
}

// CancelInvoice cancels an invoice. An invoice holding payments needs a
// disposition: move_to_client_account releases them to the client's pool,
// keep_history leaves them on the cancelled invoice.
func (s *SettlementService) CancelInvoice(ctx context.Context, userID, invoiceID uuid.UUID, req CancelInvoiceRequest) (*CancelInvoiceResponse, error) {
	var disposition *invoicing.Disposition
	dispositionLabel := "none"
	if req.Disposition != nil {
		d := invoicing.Disposition(*req.Disposition)
		disposition = &d
		dispositionLabel = *req.Disposition
	}

	var resp *CancelInvoiceResponse
	err := s.run(ctx, OpCancelInvoice, map[string]string{"disposition": dispositionLabel},
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrDocumentID, invoiceID, telemetry.SpanAttrDisposition, dispositionLabel},
		func(ctx context.Context, _ trace.Span) error {
			var err error
			resp, err = s.cancelInvoice(ctx, userID, invoiceID, disposition)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SettlementService) cancelInvoice(ctx context.Context, userID, invoiceID uuid.UUID, disposition *invoicing.Disposition) (*CancelInvoiceResponse, error) {
	if disposition != nil && !disposition.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid cancel disposition")
	}

	// payments are only attached under this guard, so the sum read below stays valid
	release, err := s.guardInvoice(ctx, invoiceID, OpCancelInvoice)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.documents.FindByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	if doc.Cancelled && movesPayments(doc) {
		// a previous cancel stored the flag but did not finish releasing the payments
		attached, err := s.payments.SumByDocument(ctx, userID, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to sum invoice payments: %w", err)
		}
		if attached.IsPositive() {
			return s.releaseCancelledInvoice(ctx, userID, doc, disposition)
		}
	}

	// the disposition check must see the real payment sum, not a stale total
	paid, err := s.payments.SumByDocument(ctx, userID, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum invoice payments: %w", err)
	}
	if !paid.Equal(doc.TotalPaid) {
		doc.ApplyPaymentTotals(paid, s.now())
	}

	if err := doc.Cancel(disposition, s.now()); err != nil {
		return nil, err
	}

	if !movesPayments(doc) {
		if err := s.documents.SaveWithLock(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to cancel invoice %s: %w", doc.Number, err)
		}
		s.log(ctx).Info("invoice cancelled",
			zap.String("document_id", doc.ID.String()),
			zap.String("number", doc.Number),
			zap.Bool("payments_moved", false),
		)
		publish(ctx, s.publisher, s.logger, invoicing.NewInvoiceCancelledEvent(doc, disposition, 0))

		balance, err := s.payments.SumUnallocatedByClient(ctx, userID, doc.Client.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute client balance: %w", err)
		}
		return &CancelInvoiceResponse{Invoice: ToDocumentResponse(doc), ClientBalance: balance}, nil
	}

	unlock, err := s.lockClient(ctx, doc.Client.ClientID, OpCancelInvoice)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.documents.SaveWithLock(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to cancel invoice %s: %w", doc.Number, err)
	}
	return s.releasePayments(ctx, userID, doc, disposition)
}

func (s *SettlementService) releaseCancelledInvoice(ctx context.Context, userID uuid.UUID, doc *invoicing.Document, disposition *invoicing.Disposition) (*CancelInvoiceResponse, error) {
	unlock, err := s.lockClient(ctx, doc.Client.ClientID, OpCancelInvoice)
	if err != nil {
		return nil, err
	}
	defer unlock()
	s.log(ctx).Warn("resuming payment release of cancelled invoice",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
	)
	if disposition == nil {
		d := invoicing.DispositionMoveToClientAccount
		disposition = &d
	}
	return s.releasePayments(ctx, userID, doc, disposition)
}

// releasePayments moves the payments of a cancelled invoice to the client
// account and zeroes its totals. The caller holds the client lock.
func (s *SettlementService) releasePayments(ctx context.Context, userID uuid.UUID, doc *invoicing.Document, disposition *invoicing.Disposition) (*CancelInvoiceResponse, error) {
	released, err := s.allocator.Deallocate(ctx, userID, doc.ID, doc.Number, true)
	if err != nil {
		return nil, err
	}

	reconciled, err := s.reconciler.ReconcileWithRetry(ctx, userID, doc.ID, OpCancelInvoice)
	if err != nil {
		s.log(ctx).Error("payments released but invoice totals are stale",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to reconcile invoice %s: %w", doc.Number, err)
	}

	s.log(ctx).Info("invoice cancelled",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.Bool("payments_moved", true),
		zap.Int("released", released),
	)
	publish(ctx, s.publisher, s.logger, invoicing.NewInvoiceCancelledEvent(reconciled, disposition, released))

	balance, err := s.payments.SumUnallocatedByClient(ctx, userID, doc.Client.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute client balance: %w", err)
	}
	return &CancelInvoiceResponse{
		Invoice:          ToDocumentResponse(reconciled),
		ReleasedPayments: released,
		ClientBalance:    balance,
	}, nil
}

// ResumeCancellation finishes a move_to_client_account cancel whose payment
// release was interrupted. An invoice with nothing left attached is returned
// unchanged.
func (s *SettlementService) ResumeCancellation(ctx context.Context, userID, invoiceID uuid.UUID) (*CancelInvoiceResponse, error) {
	var resp *CancelInvoiceResponse
	err := s.run(ctx, OpResumeCancellation, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrDocumentID, invoiceID},
		func(ctx context.Context, _ trace.Span) error {
			release, err := s.guardInvoice(ctx, invoiceID, OpResumeCancellation)
			if err != nil {
				return err
			}
			defer release()

			doc, err := s.documents.FindByID(ctx, userID, invoiceID)
			if err != nil {
				return err
			}
			if !doc.Cancelled || !movesPayments(doc) {
				resp = &CancelInvoiceResponse{Invoice: ToDocumentResponse(doc)}
				return nil
			}
			attached, err := s.payments.SumByDocument(ctx, userID, doc.ID)
			if err != nil {
				return fmt.Errorf("failed to sum invoice payments: %w", err)
			}
			if !attached.IsPositive() {
				resp = &CancelInvoiceResponse{Invoice: ToDocumentResponse(doc)}
				return nil
			}
			resp, err = s.releaseCancelledInvoice(ctx, userID, doc, nil)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func movesPayments(doc *invoicing.Document) bool {
	return doc.PaymentsMovedToClientAccount != nil && *doc.PaymentsMovedToClientAccount
}

// RestoreInvoice brings a cancelled invoice back. Payments moved to the
// client account stay there; nothing is re-allocated.
func (s *SettlementService) RestoreInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*DocumentResponse, error) {
	var resp *DocumentResponse
	err := s.run(ctx, OpRestoreInvoice, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrDocumentID, invoiceID},
		func(ctx context.Context, _ trace.Span) error {
			release, err := s.guardInvoice(ctx, invoiceID, OpRestoreInvoice)
			if err != nil {
				return err
			}
			defer release()

			doc, err := s.documents.FindByID(ctx, userID, invoiceID)
			if err != nil {
				return err
			}
			if !doc.IsInvoice() {
				return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Document %s is not an invoice", doc.Number))
			}
			if err := doc.Restore(); err != nil {
				return err
			}
			if err := s.documents.SaveWithLock(ctx, doc); err != nil {
				return fmt.Errorf("failed to restore invoice %s: %w", doc.Number, err)
			}

			s.log(ctx).Info("invoice restored",
				zap.String("document_id", doc.ID.String()),
				zap.String("number", doc.Number),
			)
			publish(ctx, s.publisher, s.logger, invoicing.NewInvoiceRestoredEvent(doc))
			r := ToDocumentResponse(doc)
			resp = &r
			return nil
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// PermanentlyDeleteInvoice physically removes a cancelled invoice. Payments
// kept on it keep pointing at the removed id and get an audit note.
func (s *SettlementService) PermanentlyDeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*DeleteInvoiceResponse, error) {
	var resp *DeleteInvoiceResponse
	err := s.run(ctx, OpDeleteInvoice, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrDocumentID, invoiceID},
		func(ctx context.Context, _ trace.Span) error {
			doc, err := s.documents.FindByID(ctx, userID, invoiceID)
			if err != nil {
				return err
			}
			if err := doc.EnsurePermanentlyDeletable(); err != nil {
				return err
			}

			kept, err := s.payments.FindByDocument(ctx, userID, doc.ID)
			if err != nil {
				return fmt.Errorf("failed to load invoice payments: %w", err)
			}
			if len(kept) > 0 {
				at := s.now()
				orphans := paymentPtrs(kept)
				for _, p := range orphans {
					p.AppendNote(at, "Invoice "+doc.Number+" was permanently deleted")
				}
				if err := s.payments.SaveBatch(ctx, orphans); err != nil {
					return fmt.Errorf("failed to annotate invoice payments: %w", err)
				}
			}

			if err := s.documents.Delete(ctx, userID, doc.ID); err != nil {
				return fmt.Errorf("failed to delete invoice %s: %w", doc.Number, err)
			}

			s.log(ctx).Info("invoice permanently deleted",
				zap.String("document_id", doc.ID.String()),
				zap.String("number", doc.Number),
				zap.Int("orphaned_payments", len(kept)),
			)
			publish(ctx, s.publisher, s.logger, invoicing.NewInvoiceDeletedEvent(doc, len(kept)))
			resp = &DeleteInvoiceResponse{InvoiceID: doc.ID, Number: doc.Number, OrphanedPayments: len(kept)}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DeletePayment removes a payment. An allocated payment's invoice is
// reconciled afterwards unless that invoice no longer exists.
func (s *SettlementService) DeletePayment(ctx context.Context, userID, paymentID uuid.UUID) (*SettlementResponse, error) {
	var resp *SettlementResponse
	err := s.run(ctx, OpDeletePayment, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrPaymentID, paymentID},
		func(ctx context.Context, _ trace.Span) error {
			var err error
			resp, err = s.deletePayment(ctx, userID, paymentID)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SettlementService) deletePayment(ctx context.Context, userID, paymentID uuid.UUID) (*SettlementResponse, error) {
	payment, err := s.payments.FindByID(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockClient(ctx, payment.ClientID, OpDeletePayment)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// allocation may have changed while waiting for the lock
	if payment, err = s.payments.FindByID(ctx, userID, paymentID); err != nil {
		return nil, err
	}
	if err := s.payments.DeleteWithLock(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to delete payment: %w", err)
	}
	s.log(ctx).Info("payment deleted",
		zap.String("payment_id", payment.ID.String()),
		zap.Bool("allocated", payment.IsAllocated()),
	)
	publish(ctx, s.publisher, s.logger, invoicing.NewPaymentDeletedEvent(payment))

	resp := &SettlementResponse{}
	if payment.IsAllocated() {
		reconciled, err := s.reconciler.ReconcileWithRetry(ctx, userID, *payment.DocumentID, OpDeletePayment)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			s.log(ctx).Info("invoice of deleted payment no longer exists, skipping reconcile",
				zap.String("document_id", payment.DocumentID.String()),
			)
		case err != nil:
			return nil, fmt.Errorf("failed to reconcile invoice: %w", err)
		default:
			invoiceResp := ToDocumentResponse(reconciled)
			resp.Invoice = &invoiceResp
		}
	}

	if resp.ClientBalance, err = s.payments.SumUnallocatedByClient(ctx, userID, payment.ClientID); err != nil {
		return nil, fmt.Errorf("failed to compute client balance: %w", err)
	}
	return resp, nil
}

// RecordClientPayment records on-account money that is not tied to any invoice
func (s *SettlementService) RecordClientPayment(ctx context.Context, userID, clientID uuid.UUID, req RecordClientPaymentRequest) (*SettlementResponse, error) {
	var resp *SettlementResponse
	err := s.run(ctx, OpRecordClientPayment, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrClientID, clientID, telemetry.SpanAttrAmount, req.Amount},
		func(ctx context.Context, _ trace.Span) error {
			if _, err := s.clients.FindByID(ctx, userID, clientID); err != nil {
				return err
			}

			unlock, err := s.lockClient(ctx, clientID, OpRecordClientPayment)
			if err != nil {
				return err
			}
			defer unlock()

			paymentDate := s.now()
			if req.PaymentDate != nil {
				paymentDate = *req.PaymentDate
			}
			payment, err := s.allocator.AddDirectPayment(ctx, userID, DirectPayment{
				ClientID:    clientID,
				Amount:      req.Amount,
				Method:      invoicing.PaymentMethod(req.Method),
				PaymentDate: paymentDate,
				Reference:   req.Reference,
				Notes:       req.Notes,
			})
			if err != nil {
				return err
			}
			publish(ctx, s.publisher, s.logger, invoicing.NewPaymentRecordedEvent(payment))

			balance, err := s.payments.SumUnallocatedByClient(ctx, userID, clientID)
			if err != nil {
				return fmt.Errorf("failed to compute client balance: %w", err)
			}
			paymentResp := ToPaymentResponse(payment)
			resp = &SettlementResponse{Payment: &paymentResp, ClientBalance: balance}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetClientBalance returns the unallocated balance of a client
func (s *SettlementService) GetClientBalance(ctx context.Context, userID, clientID uuid.UUID) (*ClientBalanceResponse, error) {
	if _, err := s.clients.FindByID(ctx, userID, clientID); err != nil {
		return nil, err
	}
	balance, err := s.payments.SumUnallocatedByClient(ctx, userID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute client balance: %w", err)
	}
	return &ClientBalanceResponse{ClientID: clientID, Balance: balance}, nil
}

// GetClientAccount summarises the client's unallocated payments, in the order
// they would be consumed, next to its outstanding invoices.
func (s *SettlementService) GetClientAccount(ctx context.Context, userID, clientID uuid.UUID) (*ClientAccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "client_account")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrClientID, clientID)

	client, err := s.clients.FindByID(ctx, userID, clientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	unallocated, err := s.payments.FindUnallocatedByClient(ctx, userID, clientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unallocated payments: %w", err)
	}
	outstanding, err := s.documents.FindOutstandingByClient(ctx, userID, clientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load outstanding invoices: %w", err)
	}

	queue := invoicing.NewPaymentQueue(paymentPtrs(unallocated))
	totalOutstanding := decimal.Zero
	for i := range outstanding {
		totalOutstanding = totalOutstanding.Add(outstanding[i].Outstanding())
	}

	return &ClientAccountResponse{
		Client:              ToClientResponse(client),
		Balance:             queue.Total(),
		UnallocatedPayments: toPaymentResponsesFromPtrs(queue.Ordered()),
		OutstandingInvoices: ToDocumentResponses(outstanding),
		TotalOutstanding:    totalOutstanding,
	}, nil
}

// ReconcileClient recomputes the totals of every invoice of a client.
// Invoices are reconciled concurrently, bounded by ReconcileConcurrency.
func (s *SettlementService) ReconcileClient(ctx context.Context, userID, clientID uuid.UUID) (*ReconcileClientResponse, error) {
	var resp *ReconcileClientResponse
	err := s.run(ctx, OpReconcileClient, nil,
		[]any{telemetry.SpanAttrUserID, userID, telemetry.SpanAttrClientID, clientID},
		func(ctx context.Context, span trace.Span) error {
			if _, err := s.clients.FindByID(ctx, userID, clientID); err != nil {
				return err
			}
			invoiceType := invoicing.DocumentTypeInvoice
			docs, err := s.documents.FindAll(ctx, userID, invoicing.DocumentFilter{
				Type:     &invoiceType,
				ClientID: &clientID,
			})
			if err != nil {
				return fmt.Errorf("failed to list client invoices: %w", err)
			}

			var reconciled, changed atomic.Int64
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(s.cfg.ReconcileConcurrency)
			for i := range docs {
				before := &docs[i]
				g.Go(func() error {
					after, err := s.reconciler.ReconcileWithRetry(gctx, userID, before.ID, OpReconcileClient)
					if errors.Is(err, shared.ErrNotFound) {
						return nil
					}
					if err != nil {
						return fmt.Errorf("failed to reconcile invoice %s: %w", before.Number, err)
					}
					reconciled.Add(1)
					if !after.TotalPaid.Equal(before.TotalPaid) || after.Paid != before.Paid {
						changed.Add(1)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			telemetry.SetAttributes(span, telemetry.SpanAttrAllocatedCount, int(reconciled.Load()))
			resp = &ReconcileClientResponse{
				ClientID:   clientID,
				Reconciled: int(reconciled.Load()),
				Changed:    int(changed.Load()),
			}
			if resp.Changed > 0 {
				s.log(ctx).Warn("client reconcile corrected invoice totals",
					zap.String("client_id", clientID.String()),
					zap.Int("changed", resp.Changed),
				)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
