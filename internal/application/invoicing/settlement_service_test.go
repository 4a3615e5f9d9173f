package invoicing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

func ptr[T any](v T) *T { return &v }

func TestSettleInvoiceFromBalance_FIFOWithSplit(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	oldest := h.deposit(t, clientID, "50", 3)
	middle := h.deposit(t, clientID, "30", 2)
	newest := h.deposit(t, clientID, "40", 1)

	resp, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{
		ClientID: clientID,
		Amount:   dec("70"),
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Allocation)
	assert.True(t, resp.Allocation.Split)
	require.Len(t, resp.Allocation.Allocated, 2)
	assert.Equal(t, oldest, resp.Allocation.Allocated[0].ID)
	assert.Equal(t, middle, resp.Allocation.Allocated[1].ID)
	assert.True(t, dec("20").Equal(resp.Allocation.Allocated[1].Amount))
	require.NotNil(t, resp.Allocation.Remainder)
	assert.True(t, dec("10").Equal(resp.Allocation.Remainder.Amount))
	assert.Equal(t, &middle, resp.Allocation.Remainder.SplitFromID)

	assert.True(t, dec("50").Equal(resp.ClientBalance))
	assert.True(t, dec("50").Equal(h.balance(t, clientID)))

	doc := h.document(t, invoiceID)
	assert.True(t, dec("70").Equal(doc.TotalPaid))
	assert.False(t, doc.Paid)
	assert.Equal(t, invoicing.PaymentStatePartial, doc.PaymentState())

	untouched, err := h.payments.FindByID(ctx, h.userID, newest)
	require.NoError(t, err)
	assert.False(t, untouched.IsAllocated())

	assert.Contains(t, h.publisher.types(), invoicing.EventTypePaymentsAllocated)
	assert.Contains(t, h.publisher.types(), invoicing.EventTypeInvoiceReconciled)
}

func TestSettleInvoiceFromBalance_Guards(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	otherClient := h.createClient(t, "Globex")
	invoiceID := h.createInvoice(t, clientID, "100")
	h.deposit(t, clientID, "30", 1)

	t.Run("insufficient balance writes nothing", func(t *testing.T) {
		_, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{ClientID: clientID, Amount: dec("50")})
		require.Error(t, err)
		assert.Equal(t, shared.CodeInsufficientBalance, shared.ErrorCode(err))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "30.00", domainErr.Details["available"])
		assert.True(t, dec("30").Equal(h.balance(t, clientID)))
		assert.True(t, h.document(t, invoiceID).TotalPaid.IsZero())
	})

	t.Run("amount above outstanding", func(t *testing.T) {
		_, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{ClientID: clientID, Amount: dec("150")})
		assert.Equal(t, shared.CodeInvalidAmount, shared.ErrorCode(err))
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{ClientID: clientID, Amount: dec("0")})
		assert.Equal(t, shared.CodeInvalidAmount, shared.ErrorCode(err))
	})

	t.Run("client mismatch", func(t *testing.T) {
		_, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{ClientID: otherClient, Amount: dec("10")})
		assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
	})

	t.Run("proforma target", func(t *testing.T) {
		proforma := h.createDocument(t, clientID, invoicing.DocumentTypeProforma, "50")
		_, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, proforma.ID, SettleInvoiceRequest{ClientID: clientID, Amount: dec("10")})
		assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
	})
}

func TestSettleInvoiceFromBalance_PartialThenFull(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	h.deposit(t, clientID, "150", 1)

	resp, err := h.settlement.SettleInvoiceFromBalance(ctx, h.userID, invoiceID, SettleInvoiceRequest{ClientID: clientID, Amount: dec("100")})
	require.NoError(t, err)
	assert.True(t, resp.Invoice.Paid)
	assert.True(t, dec("50").Equal(resp.ClientBalance))
	assert.Equal(t, "paid", resp.Invoice.PaymentState)
}

func TestAddPayment_DirectPayments(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "200")

	first, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("80")})
	require.NoError(t, err)
	require.NotNil(t, first.Payment)
	assert.True(t, first.Payment.SettledToDocument)
	assert.Equal(t, string(invoicing.PaymentMethodCash), first.Payment.Method)
	assert.Equal(t, "partial", first.Invoice.PaymentState)

	second, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("120"), Method: "card"})
	require.NoError(t, err)
	assert.True(t, second.Invoice.Paid)
	assert.True(t, dec("200").Equal(second.Invoice.TotalPaid))
	assert.True(t, second.ClientBalance.IsZero())
}

func TestAddPayment_FromClientAccount(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	h.deposit(t, clientID, "60", 1)

	resp, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("60"), Source: PaymentSourceClientAccount})
	require.NoError(t, err)
	require.NotNil(t, resp.Allocation)
	assert.False(t, resp.Allocation.Split)
	assert.True(t, resp.ClientBalance.IsZero())
	assert.True(t, dec("60").Equal(resp.Invoice.TotalPaid))

	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("10"), Source: PaymentSourceClientAccount})
	assert.Equal(t, shared.CodeInsufficientBalance, shared.ErrorCode(err))
}

func TestAddPayment_Rejections(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("-5")})
	assert.Equal(t, shared.CodeInvalidAmount, shared.ErrorCode(err))

	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("5"), Source: "wire"})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	proforma := h.createDocument(t, clientID, invoicing.DocumentTypeProforma, "100")
	_, err = h.settlement.AddPayment(ctx, h.userID, proforma.ID, AddPaymentRequest{Amount: dec("5")})
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("5")})
	require.NoError(t, err)
	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{Disposition: ptr(string(invoicing.DispositionKeepHistory))})
	require.NoError(t, err)
	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("5")})
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
}

func TestAddPayment_DoubleSubmit(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	release, err := shared.TryAcquireOnce(ctx, h.locks, InflightKey(invoiceID), time.Second)
	require.NoError(t, err)

	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40")})
	assert.ErrorIs(t, err, shared.ErrOperationInProgress)
	assert.True(t, h.document(t, invoiceID).TotalPaid.IsZero())

	release()
	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40")})
	assert.NoError(t, err)
}

func TestAddPayment_ClientLockContention(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	h.deposit(t, clientID, "40", 1)

	release, err := shared.TryAcquireOnce(ctx, h.locks, ClientLockKey(clientID), time.Second)
	require.NoError(t, err)
	defer release()

	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40"), Source: PaymentSourceClientAccount})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, shared.IsRetryable(err))
	assert.True(t, dec("40").Equal(h.balance(t, clientID)))
}

func TestCancelInvoice_MoveToClientAccountThenRestore(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40")})
	require.NoError(t, err)

	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	assert.ErrorIs(t, err, shared.ErrDispositionRequired)
	assert.False(t, h.document(t, invoiceID).Cancelled)

	resp, err := h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{
		Disposition: ptr(string(invoicing.DispositionMoveToClientAccount)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ReleasedPayments)
	assert.True(t, dec("40").Equal(resp.ClientBalance))
	assert.True(t, resp.Invoice.Cancelled)
	require.NotNil(t, resp.Invoice.PaymentsMovedToClientAccount)
	assert.True(t, *resp.Invoice.PaymentsMovedToClientAccount)
	assert.True(t, resp.Invoice.TotalPaid.IsZero())

	released, err := h.payments.FindUnallocatedByClient(ctx, h.userID, clientID)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Contains(t, released[0].Notes, "Moved to client account")

	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	restored, err := h.settlement.RestoreInvoice(ctx, h.userID, invoiceID)
	require.NoError(t, err)
	assert.False(t, restored.Cancelled)
	assert.Nil(t, restored.PaymentsMovedToClientAccount)
	assert.True(t, restored.TotalPaid.IsZero())
	assert.True(t, dec("40").Equal(h.balance(t, clientID)), "restore does not re-allocate")

	_, err = h.settlement.RestoreInvoice(ctx, h.userID, invoiceID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	assert.Contains(t, h.publisher.types(), invoicing.EventTypeInvoiceCancelled)
	assert.Contains(t, h.publisher.types(), invoicing.EventTypeInvoiceRestored)
}

func TestCancelInvoice_KeepHistoryAndUnpaid(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")

	paidID := h.createInvoice(t, clientID, "100")
	_, err := h.settlement.AddPayment(ctx, h.userID, paidID, AddPaymentRequest{Amount: dec("100")})
	require.NoError(t, err)

	resp, err := h.settlement.CancelInvoice(ctx, h.userID, paidID, CancelInvoiceRequest{
		Disposition: ptr(string(invoicing.DispositionKeepHistory)),
	})
	require.NoError(t, err)
	assert.Zero(t, resp.ReleasedPayments)
	assert.True(t, dec("100").Equal(resp.Invoice.TotalPaid))
	require.NotNil(t, resp.Invoice.PaymentsMovedToClientAccount)
	assert.False(t, *resp.Invoice.PaymentsMovedToClientAccount)
	assert.True(t, resp.ClientBalance.IsZero())

	unpaidID := h.createInvoice(t, clientID, "30")
	resp, err = h.settlement.CancelInvoice(ctx, h.userID, unpaidID, CancelInvoiceRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Invoice.Cancelled)
	assert.Nil(t, resp.Invoice.PaymentsMovedToClientAccount)

	_, err = h.settlement.CancelInvoice(ctx, h.userID, paidID, CancelInvoiceRequest{Disposition: ptr("refund")})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestCancelInvoice_ResumesInterruptedRelease(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("25")})
	require.NoError(t, err)

	// the cancel flag is stored but the payments were never released
	doc := h.document(t, invoiceID)
	move := invoicing.DispositionMoveToClientAccount
	require.NoError(t, doc.Cancel(&move, testNow))
	require.NoError(t, h.documents.SaveWithLock(ctx, doc))

	resp, err := h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ReleasedPayments)
	assert.True(t, dec("25").Equal(h.balance(t, clientID)))
	assert.True(t, h.document(t, invoiceID).TotalPaid.IsZero())
}

func TestResumeCancellation(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40")})
	require.NoError(t, err)

	t.Run("active invoice is left alone", func(t *testing.T) {
		resp, err := h.settlement.ResumeCancellation(ctx, h.userID, invoiceID)
		require.NoError(t, err)
		assert.Zero(t, resp.ReleasedPayments)
		assert.False(t, resp.Invoice.Cancelled)
		assert.True(t, dec("40").Equal(h.document(t, invoiceID).TotalPaid))
	})

	t.Run("interrupted release is finished", func(t *testing.T) {
		doc := h.document(t, invoiceID)
		move := invoicing.DispositionMoveToClientAccount
		require.NoError(t, doc.Cancel(&move, testNow))
		require.NoError(t, h.documents.SaveWithLock(ctx, doc))

		resp, err := h.settlement.ResumeCancellation(ctx, h.userID, invoiceID)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.ReleasedPayments)
		assert.True(t, dec("40").Equal(resp.ClientBalance))
		assert.True(t, h.document(t, invoiceID).TotalPaid.IsZero())
	})

	t.Run("second run finds nothing attached", func(t *testing.T) {
		resp, err := h.settlement.ResumeCancellation(ctx, h.userID, invoiceID)
		require.NoError(t, err)
		assert.Zero(t, resp.ReleasedPayments)
		assert.True(t, resp.Invoice.Cancelled)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := h.settlement.ResumeCancellation(ctx, h.userID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPermanentlyDeleteInvoice(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	added, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("30")})
	require.NoError(t, err)

	_, err = h.settlement.PermanentlyDeleteInvoice(ctx, h.userID, invoiceID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{
		Disposition: ptr(string(invoicing.DispositionKeepHistory)),
	})
	require.NoError(t, err)

	resp, err := h.settlement.PermanentlyDeleteInvoice(ctx, h.userID, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.OrphanedPayments)

	_, err = h.documents.FindByID(ctx, h.userID, invoiceID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	orphan, err := h.payments.FindByID(ctx, h.userID, added.Payment.ID)
	require.NoError(t, err)
	require.NotNil(t, orphan.DocumentID)
	assert.Equal(t, invoiceID, *orphan.DocumentID)
	assert.True(t, strings.Contains(orphan.Notes, "permanently deleted"))

	// deleting the orphan skips the reconcile of the missing invoice
	deleted, err := h.settlement.DeletePayment(ctx, h.userID, orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted.Invoice)

	assert.Contains(t, h.publisher.types(), invoicing.EventTypeInvoiceDeleted)
}

func TestDeletePayment(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	first, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("60")})
	require.NoError(t, err)
	_, err = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("40")})
	require.NoError(t, err)
	require.True(t, h.document(t, invoiceID).Paid)

	resp, err := h.settlement.DeletePayment(ctx, h.userID, first.Payment.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice)
	assert.False(t, resp.Invoice.Paid)
	assert.True(t, dec("40").Equal(resp.Invoice.TotalPaid))

	onAccount := h.deposit(t, clientID, "15", 0)
	resp, err = h.settlement.DeletePayment(ctx, h.userID, onAccount)
	require.NoError(t, err)
	assert.Nil(t, resp.Invoice)
	assert.True(t, resp.ClientBalance.IsZero())

	_, err = h.settlement.DeletePayment(ctx, h.userID, onAccount)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePayment_AllocatedWhileWaitingForClientLock(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	paymentID := h.deposit(t, clientID, "40", 1)

	// another session settles the invoice from the balance before the delete gets the lock
	locks := &hookedLockStore{LockStore: h.locks, beforeClientLock: func() {
		_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{
			Amount: dec("40"),
			Source: PaymentSourceClientAccount,
		})
		require.NoError(t, err)
		require.True(t, dec("40").Equal(h.document(t, invoiceID).TotalPaid))
	}}
	settlement := h.newSettlement(h.payments, locks)

	resp, err := settlement.DeletePayment(ctx, h.userID, paymentID)
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice, "the invoice the payment ended up on is reconciled")
	assert.True(t, resp.Invoice.TotalPaid.IsZero())

	sum, err := h.payments.SumByDocument(ctx, h.userID, invoiceID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
	assert.True(t, h.document(t, invoiceID).TotalPaid.Equal(sum))
}

func TestCancelInvoice_PaymentAttemptDuringCancel(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	var racing error
	payments := &hookedPayments{PaymentRepository: h.payments, afterSum: func() {
		_, racing = h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("30")})
	}}
	settlement := h.newSettlement(payments, h.locks)

	resp, err := settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Invoice.Cancelled)
	assert.ErrorIs(t, racing, shared.ErrOperationInProgress)

	sum, err := h.payments.SumByDocument(ctx, h.userID, invoiceID)
	require.NoError(t, err)
	doc := h.document(t, invoiceID)
	assert.True(t, sum.IsZero())
	assert.True(t, doc.TotalPaid.Equal(sum))
	assert.True(t, doc.Cancelled)
}

func TestCancelInvoice_InFlightPaymentBlocksCancel(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")

	release, err := shared.TryAcquireOnce(ctx, h.locks, InflightKey(invoiceID), time.Second)
	require.NoError(t, err)

	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	assert.ErrorIs(t, err, shared.ErrOperationInProgress)
	_, err = h.settlement.RestoreInvoice(ctx, h.userID, invoiceID)
	assert.ErrorIs(t, err, shared.ErrOperationInProgress)
	assert.False(t, h.document(t, invoiceID).Cancelled)

	release()
	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{})
	assert.NoError(t, err)
}

func TestRestoreInvoice_KeepsReconciledTotals(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	invoiceID := h.createInvoice(t, clientID, "100")
	_, err := h.settlement.AddPayment(ctx, h.userID, invoiceID, AddPaymentRequest{Amount: dec("30")})
	require.NoError(t, err)
	_, err = h.settlement.CancelInvoice(ctx, h.userID, invoiceID, CancelInvoiceRequest{
		Disposition: ptr(string(invoicing.DispositionKeepHistory)),
	})
	require.NoError(t, err)

	// a stale total on a read copy must not reach the store
	stale := h.document(t, invoiceID)
	stale.TotalPaid = dec("0")
	stale.Paid = false
	require.NoError(t, stale.Restore())
	require.NoError(t, h.documents.SaveWithLock(ctx, stale))

	doc := h.document(t, invoiceID)
	assert.False(t, doc.Cancelled)
	assert.True(t, dec("30").Equal(doc.TotalPaid))
}

func TestRecordClientPayment_UnknownClient(t *testing.T) {
	h := newLedgerHarness(t)
	_, err := h.settlement.RecordClientPayment(context.Background(), h.userID, h.userID, RecordClientPaymentRequest{Amount: dec("10")})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetClientAccount(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	first := h.createInvoice(t, clientID, "100")
	h.createInvoice(t, clientID, "50")
	cancelled := h.createInvoice(t, clientID, "999")
	_, err := h.settlement.CancelInvoice(ctx, h.userID, cancelled, CancelInvoiceRequest{})
	require.NoError(t, err)

	newer := h.deposit(t, clientID, "20", 1)
	older := h.deposit(t, clientID, "30", 5)
	_, err = h.settlement.AddPayment(ctx, h.userID, first, AddPaymentRequest{Amount: dec("25")})
	require.NoError(t, err)

	account, err := h.settlement.GetClientAccount(ctx, h.userID, clientID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", account.Client.Name)
	assert.True(t, dec("50").Equal(account.Balance))
	require.Len(t, account.UnallocatedPayments, 2)
	assert.Equal(t, older, account.UnallocatedPayments[0].ID)
	assert.Equal(t, newer, account.UnallocatedPayments[1].ID)
	assert.Len(t, account.OutstandingInvoices, 2)
	assert.True(t, dec("125").Equal(account.TotalOutstanding))

	balance, err := h.settlement.GetClientBalance(ctx, h.userID, clientID)
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(balance.Balance))
}

func TestReconcileClient_RepairsDriftedTotals(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	clientID := h.createClient(t, "Acme")
	drifted := h.createInvoice(t, clientID, "100")
	clean := h.createInvoice(t, clientID, "80")

	_, err := h.settlement.AddPayment(ctx, h.userID, drifted, AddPaymentRequest{Amount: dec("100")})
	require.NoError(t, err)
	_, err = h.settlement.AddPayment(ctx, h.userID, clean, AddPaymentRequest{Amount: dec("10")})
	require.NoError(t, err)

	require.NoError(t, h.documents.UpdatePaymentTotals(ctx, h.userID, drifted, dec("0"), false, testNow))

	resp, err := h.settlement.ReconcileClient(ctx, h.userID, clientID)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Reconciled)
	assert.Equal(t, 1, resp.Changed)
	assert.True(t, h.document(t, drifted).Paid)

	again, err := h.settlement.ReconcileClient(ctx, h.userID, clientID)
	require.NoError(t, err)
	assert.Zero(t, again.Changed)
}
