package invoicing

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/cache"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// ledgerHarness wires the services over an in-memory SQLite ledger
type ledgerHarness struct {
	userID     uuid.UUID
	documents  *persistence.GormDocumentRepository
	payments   *persistence.GormPaymentRepository
	clients    *persistence.GormClientRepository
	locks      *cache.InMemoryLockStore
	publisher  *recordingPublisher
	numbering  *NumberingService
	allocator  *PaymentAllocator
	reconciler *InvoiceReconciler
	settlement *SettlementService
	docService *DocumentService
	clientSvc  *ClientService
	stockSvc   *StockService
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.ClientModel{},
		&models.DocumentModel{},
		&models.PaymentModel{},
		&models.SequenceCounterModel{},
		&models.StockItemModel{},
	))

	locks := cache.NewInMemoryLockStore()
	t.Cleanup(func() { _ = locks.Close() })

	h := &ledgerHarness{
		userID:    uuid.New(),
		documents: persistence.NewGormDocumentRepository(db),
		payments:  persistence.NewGormPaymentRepository(db),
		clients:   persistence.NewGormClientRepository(db),
		locks:     locks,
		publisher: &recordingPublisher{},
	}
	log := zap.NewNop()
	h.numbering = NewNumberingService(persistence.NewGormSequenceRepository(db), invoicing.SequenceResetNever, 5, log)
	h.allocator = NewPaymentAllocator(h.payments, nil, log)
	h.reconciler = NewInvoiceReconciler(h.documents, h.payments, h.publisher, nil,
		RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, log)
	h.settlement = h.newSettlement(h.payments, locks)
	h.docService = NewDocumentService(h.documents, h.clients, h.numbering, h.reconciler, decimal.RequireFromString("0.11"), log)
	h.docService.now = func() time.Time { return testNow }
	h.clientSvc = NewClientService(h.clients, h.numbering, log)
	h.stockSvc = NewStockService(persistence.NewGormStockItemRepository(db), h.numbering)
	return h
}

// newSettlement builds a settlement service over the harness ledger that
// reads payments and takes locks through the given ports
func (h *ledgerHarness) newSettlement(payments invoicing.PaymentRepository, locks shared.LockStore) *SettlementService {
	return NewSettlementService(h.documents, payments, h.clients, locks, h.allocator, h.reconciler,
		SettlementConfig{
			ClientLock:           shared.LockConfig{TTL: time.Second, Wait: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond},
			InflightTTL:          time.Second,
			ReconcileConcurrency: 2,
		},
		WithEventPublisher(h.publisher),
		WithClock(func() time.Time { return testNow }),
	)
}

// hookedLockStore runs beforeClientLock once, the first time a client lock is requested
type hookedLockStore struct {
	shared.LockStore
	once             sync.Once
	beforeClientLock func()
}

func (l *hookedLockStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if strings.HasPrefix(key, "lock:client:") {
		l.once.Do(l.beforeClientLock)
	}
	return l.LockStore.TryAcquire(ctx, key, ttl)
}

// hookedPayments runs afterSum once, right after the first SumByDocument returns
type hookedPayments struct {
	invoicing.PaymentRepository
	once     sync.Once
	afterSum func()
}

func (p *hookedPayments) SumByDocument(ctx context.Context, userID, documentID uuid.UUID) (decimal.Decimal, error) {
	sum, err := p.PaymentRepository.SumByDocument(ctx, userID, documentID)
	p.once.Do(p.afterSum)
	return sum, err
}

func (h *ledgerHarness) createClient(t *testing.T, name string) uuid.UUID {
	t.Helper()
	resp, err := h.clientSvc.Create(context.Background(), h.userID, CreateClientRequest{Name: name})
	require.NoError(t, err)
	return resp.ID
}

func (h *ledgerHarness) createDocument(t *testing.T, clientID uuid.UUID, docType invoicing.DocumentType, total string) *DocumentResponse {
	t.Helper()
	date := testNow
	resp, err := h.docService.Create(context.Background(), h.userID, CreateDocumentRequest{
		Type:     string(docType),
		ClientID: clientID,
		DocumentContentRequest: DocumentContentRequest{
			Date: &date,
			Items: []DocumentItemRequest{{
				Description: "Consulting",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString(total),
			}},
		},
	})
	require.NoError(t, err)
	return resp
}

func (h *ledgerHarness) createInvoice(t *testing.T, clientID uuid.UUID, total string) uuid.UUID {
	t.Helper()
	return h.createDocument(t, clientID, invoicing.DocumentTypeInvoice, total).ID
}

// deposit records on-account money dated daysAgo days before testNow
func (h *ledgerHarness) deposit(t *testing.T, clientID uuid.UUID, amount string, daysAgo int) uuid.UUID {
	t.Helper()
	date := testNow.AddDate(0, 0, -daysAgo)
	resp, err := h.settlement.RecordClientPayment(context.Background(), h.userID, clientID, RecordClientPaymentRequest{
		Amount:      decimal.RequireFromString(amount),
		PaymentDate: &date,
		Method:      string(invoicing.PaymentMethodBankTransfer),
	})
	require.NoError(t, err)
	return resp.Payment.ID
}

func (h *ledgerHarness) balance(t *testing.T, clientID uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := h.payments.SumUnallocatedByClient(context.Background(), h.userID, clientID)
	require.NoError(t, err)
	return b
}

func (h *ledgerHarness) document(t *testing.T, id uuid.UUID) *invoicing.Document {
	t.Helper()
	doc, err := h.documents.FindByID(context.Background(), h.userID, id)
	require.NoError(t, err)
	return doc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
