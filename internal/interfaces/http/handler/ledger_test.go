package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
	domaininvoicing "github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/cache"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/dto"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/middleware"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// envelope mirrors dto.Response with the payload left undecoded
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// ledgerAPI serves the invoicing handlers over an in-memory SQLite ledger
type ledgerAPI struct {
	engine *gin.Engine
	userID uuid.UUID
}

func newLedgerAPI(t *testing.T) *ledgerAPI {
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

	log := zap.NewNop()
	documents := persistence.NewGormDocumentRepository(db)
	payments := persistence.NewGormPaymentRepository(db)
	clients := persistence.NewGormClientRepository(db)
	numbering := invoicing.NewNumberingService(persistence.NewGormSequenceRepository(db), domaininvoicing.SequenceResetNever, 5, log)
	allocator := invoicing.NewPaymentAllocator(payments, nil, log)
	reconciler := invoicing.NewInvoiceReconciler(documents, payments, nil, nil,
		invoicing.RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, log)
	settlement := invoicing.NewSettlementService(documents, payments, clients, locks, allocator, reconciler,
		invoicing.SettlementConfig{
			ClientLock:           shared.LockConfig{TTL: time.Second, Wait: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond},
			InflightTTL:          time.Second,
			ReconcileConcurrency: 2,
		})
	paymentQueries := invoicing.NewPaymentQueryService(payments)

	clientHandler := NewClientHandler(invoicing.NewClientService(clients, numbering, log), settlement)
	documentHandler := NewDocumentHandler(invoicing.NewDocumentService(documents, clients, numbering, reconciler, decimal.Zero, log))
	invoiceHandler := NewInvoiceHandler(settlement, paymentQueries)
	paymentHandler := NewPaymentHandler(paymentQueries, settlement)
	stockHandler := NewStockHandler(invoicing.NewStockService(persistence.NewGormStockItemRepository(db), numbering))

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.HeaderIdentity())
	api := engine.Group("/api/v1")

	api.POST("/clients", clientHandler.Create)
	api.GET("/clients", clientHandler.List)
	api.GET("/clients/:id", clientHandler.GetByID)
	api.GET("/clients/:id/balance", clientHandler.GetBalance)
	api.GET("/clients/:id/account", clientHandler.GetAccount)
	api.POST("/clients/:id/payments", clientHandler.RecordPayment)
	api.POST("/clients/:id/reconcile", clientHandler.Reconcile)

	api.POST("/documents", documentHandler.Create)
	api.GET("/documents", documentHandler.List)
	api.GET("/documents/:id", documentHandler.GetByID)
	api.POST("/documents/:id/convert", documentHandler.Convert)
	api.DELETE("/documents/:id", documentHandler.DeleteProforma)

	api.POST("/invoices/:id/payments", invoiceHandler.AddPayment)
	api.GET("/invoices/:id/payments", invoiceHandler.ListPayments)
	api.POST("/invoices/:id/settle", invoiceHandler.Settle)
	api.POST("/invoices/:id/cancel", invoiceHandler.Cancel)
	api.POST("/invoices/:id/restore", invoiceHandler.Restore)
	api.DELETE("/invoices/:id", invoiceHandler.Delete)

	api.GET("/payments", paymentHandler.List)
	api.GET("/payments/:id", paymentHandler.GetByID)
	api.DELETE("/payments/:id", paymentHandler.Delete)

	api.POST("/stock-items", stockHandler.Create)
	api.GET("/stock-items", stockHandler.List)

	return &ledgerAPI{engine: engine, userID: uuid.New()}
}

// do sends a request as the harness user; a nil body sends none
func (a *ledgerAPI) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	return a.doAs(t, a.userID, method, path, body)
}

func (a *ledgerAPI) doAs(t *testing.T, userID uuid.UUID, method, path string, body any) (int, envelope) {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != uuid.Nil {
		req.Header.Set(middleware.UserIDHeader, userID.String())
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (a *ledgerAPI) createClient(t *testing.T, name string) uuid.UUID {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, code)
	return decode[invoicing.ClientResponse](t, env).ID
}

func (a *ledgerAPI) createDocument(t *testing.T, clientID uuid.UUID, docType, total string) invoicing.DocumentResponse {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/documents", map[string]any{
		"type":      docType,
		"client_id": clientID,
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "1", "unit_price": total},
		},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return decode[invoicing.DocumentResponse](t, env)
}

func (a *ledgerAPI) deposit(t *testing.T, clientID uuid.UUID, amount string) invoicing.PaymentResponse {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/clients/"+clientID.String()+"/payments", map[string]any{
		"amount":         amount,
		"payment_method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return *decode[invoicing.SettlementResponse](t, env).Payment
}

func (a *ledgerAPI) balance(t *testing.T, clientID uuid.UUID) decimal.Decimal {
	t.Helper()
	code, env := a.do(t, http.MethodGet, "/api/v1/clients/"+clientID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, code)
	return decode[invoicing.ClientBalanceResponse](t, env).Balance
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerAPI_RequiresOwner(t *testing.T) {
	api := newLedgerAPI(t)

	code, env := api.doAs(t, uuid.Nil, http.MethodGet, "/api/v1/clients", nil)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, dto.ErrCodeUnauthorized, env.Error.Code)
	assert.NotEmpty(t, env.Error.RequestID)
}

func TestLedgerAPI_AddPaymentPaysInvoice(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")
	assert.NotEmpty(t, invoice.Number)
	assert.False(t, invoice.Paid)

	path := "/api/v1/invoices/" + invoice.ID.String() + "/payments"
	code, env := api.do(t, http.MethodPost, path, map[string]any{"amount": "60", "payment_method": "cash"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	partial := decode[invoicing.SettlementResponse](t, env)
	require.NotNil(t, partial.Invoice)
	assert.True(t, partial.Invoice.TotalPaid.Equal(money("60")))
	assert.True(t, partial.Invoice.Outstanding.Equal(money("40")))
	assert.False(t, partial.Invoice.Paid)

	code, env = api.do(t, http.MethodPost, path, map[string]any{"amount": "40"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	paid := decode[invoicing.SettlementResponse](t, env)
	assert.True(t, paid.Invoice.Paid)
	assert.True(t, paid.ClientBalance.IsZero())

	code, env = api.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]invoicing.PaymentResponse](t, env), 2)
}

func TestLedgerAPI_AddPaymentRejections(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")
	proforma := api.createDocument(t, clientID, "proforma", "100")

	tests := []struct {
		name       string
		documentID string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"malformed id", "not-a-uuid", map[string]any{"amount": "10"}, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"unknown source", invoice.ID.String(), map[string]any{"amount": "10", "source": "wallet"}, http.StatusBadRequest, dto.ErrCodeValidation},
		{"negative amount", invoice.ID.String(), map[string]any{"amount": "-5"}, http.StatusUnprocessableEntity, dto.ErrCodeInvalidAmount},
		{"proforma", proforma.ID.String(), map[string]any{"amount": "10"}, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"missing invoice", uuid.NewString(), map[string]any{"amount": "10"}, http.StatusNotFound, dto.ErrCodeNotFound},
		{"empty client account", invoice.ID.String(), map[string]any{"amount": "10", "source": "client_account"}, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := api.do(t, http.MethodPost, "/api/v1/invoices/"+tt.documentID+"/payments", tt.body)
			assert.Equal(t, tt.wantStatus, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestLedgerAPI_SettleFromBalance(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")
	api.deposit(t, clientID, "30")
	api.deposit(t, clientID, "50")
	require.True(t, api.balance(t, clientID).Equal(money("80")))

	path := "/api/v1/invoices/" + invoice.ID.String() + "/settle"

	t.Run("more than the balance", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, path, map[string]any{"client_id": clientID, "amount": "90"})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, dto.ErrCodeInsufficientBalance, env.Error.Code)
		assert.Equal(t, "80.00", env.Error.Context["available"])
		assert.Equal(t, "90.00", env.Error.Context["required"])
	})

	t.Run("more than outstanding", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, path, map[string]any{"client_id": clientID, "amount": "150"})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, dto.ErrCodeInvalidAmount, env.Error.Code)
	})

	t.Run("missing client", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, path, map[string]any{"amount": "10"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	})

	t.Run("partial settlement splits the second payment", func(t *testing.T) {
		code, env := api.do(t, http.MethodPost, path, map[string]any{"client_id": clientID, "amount": "45"})
		require.Equal(t, http.StatusOK, code, env.Error)
		resp := decode[invoicing.SettlementResponse](t, env)
		assert.True(t, resp.Invoice.TotalPaid.Equal(money("45")))
		assert.True(t, resp.ClientBalance.Equal(money("35")))
		require.NotNil(t, resp.Allocation)
		assert.True(t, resp.Allocation.Split)
		assert.Len(t, resp.Allocation.Allocated, 2)
	})

	assert.True(t, api.balance(t, clientID).Equal(money("35")))
}

func TestLedgerAPI_CancelRestoreDelete(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")
	base := "/api/v1/invoices/" + invoice.ID.String()

	code, env := api.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": "70"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = api.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "only cancelled invoices can be deleted")
	assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)

	code, env = api.do(t, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, dto.ErrCodeDispositionRequired, env.Error.Code)

	code, env = api.do(t, http.MethodPost, base+"/cancel", map[string]any{"disposition": "refund"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)

	code, env = api.do(t, http.MethodPost, base+"/cancel", map[string]any{"disposition": "move_to_client_account"})
	require.Equal(t, http.StatusOK, code, env.Error)
	cancelled := decode[invoicing.CancelInvoiceResponse](t, env)
	assert.True(t, cancelled.Invoice.Cancelled)
	assert.True(t, cancelled.Invoice.TotalPaid.IsZero())
	assert.Equal(t, 1, cancelled.ReleasedPayments)
	assert.True(t, cancelled.ClientBalance.Equal(money("70")))

	code, env = api.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": "10"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "cancelled invoices take no payments")
	assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)

	code, env = api.do(t, http.MethodPost, base+"/restore", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	restored := decode[invoicing.DocumentResponse](t, env)
	assert.False(t, restored.Cancelled)
	assert.True(t, restored.TotalPaid.IsZero(), "released payments stay on the client account")
	assert.True(t, api.balance(t, clientID).Equal(money("70")))

	code, _ = api.do(t, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, code, "an invoice without payments needs no disposition")

	code, env = api.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	deleted := decode[invoicing.DeleteInvoiceResponse](t, env)
	assert.Equal(t, invoice.ID, deleted.InvoiceID)
	assert.Zero(t, deleted.OrphanedPayments)

	code, _ = api.do(t, http.MethodGet, "/api/v1/documents/"+invoice.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLedgerAPI_DeletePaymentReopensInvoice(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")

	code, env := api.do(t, http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/payments", map[string]any{"amount": "100"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	payment := decode[invoicing.SettlementResponse](t, env).Payment
	require.NotNil(t, payment)

	code, env = api.do(t, http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[invoicing.PaymentResponse](t, env).SettledToDocument)

	code, env = api.do(t, http.MethodDelete, "/api/v1/payments/"+payment.ID.String(), nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	resp := decode[invoicing.SettlementResponse](t, env)
	require.NotNil(t, resp.Invoice)
	assert.False(t, resp.Invoice.Paid)
	assert.True(t, resp.Invoice.Outstanding.Equal(money("100")))

	code, env = api.do(t, http.MethodDelete, "/api/v1/payments/"+payment.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
}

func TestLedgerAPI_ClientAccount(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	api.createDocument(t, clientID, "invoice", "120")
	api.deposit(t, clientID, "20")

	code, env := api.do(t, http.MethodGet, "/api/v1/clients/"+clientID.String()+"/account", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	account := decode[invoicing.ClientAccountResponse](t, env)
	assert.True(t, account.Balance.Equal(money("20")))
	assert.Len(t, account.UnallocatedPayments, 1)
	assert.Len(t, account.OutstandingInvoices, 1)
	assert.True(t, account.TotalOutstanding.Equal(money("120")))

	code, env = api.do(t, http.MethodPost, "/api/v1/clients/"+clientID.String()+"/reconcile", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	reconciled := decode[invoicing.ReconcileClientResponse](t, env)
	assert.Equal(t, 1, reconciled.Reconciled)
	assert.Zero(t, reconciled.Changed)

	code, env = api.do(t, http.MethodGet, "/api/v1/payments?unallocated=true&client_id="+clientID.String(), nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Len(t, decode[[]invoicing.PaymentResponse](t, env), 1)
}

func TestLedgerAPI_OwnersAreIsolated(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	invoice := api.createDocument(t, clientID, "invoice", "100")

	stranger := uuid.New()
	code, _ := api.doAs(t, stranger, http.MethodGet, "/api/v1/documents/"+invoice.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.doAs(t, stranger, http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/payments", map[string]any{"amount": "10"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env := api.doAs(t, stranger, http.MethodGet, "/api/v1/clients", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]invoicing.ClientResponse](t, env))
	assert.Equal(t, int64(0), env.Meta.Total)
}

func TestLedgerAPI_ProformaLifecycle(t *testing.T) {
	api := newLedgerAPI(t)
	clientID := api.createClient(t, "Acme")
	proforma := api.createDocument(t, clientID, "proforma", "80")

	code, env := api.do(t, http.MethodPost, "/api/v1/documents/"+proforma.ID.String()+"/convert", nil)
	require.Equal(t, http.StatusCreated, code, env.Error)
	invoice := decode[invoicing.DocumentResponse](t, env)
	assert.Equal(t, "invoice", invoice.Type)
	require.NotNil(t, invoice.ConvertedFromID)
	assert.Equal(t, proforma.ID, *invoice.ConvertedFromID)
	assert.NotEqual(t, proforma.Number, invoice.Number)

	code, env = api.do(t, http.MethodPost, "/api/v1/documents/"+proforma.ID.String()+"/convert", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)

	code, env = api.do(t, http.MethodGet, "/api/v1/documents?type=invoice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), env.Meta.Total)

	code, _ = api.do(t, http.MethodDelete, "/api/v1/documents/"+invoice.ID.String(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "invoices are cancelled, not deleted")

	other := api.createDocument(t, clientID, "proforma", "10")
	code, _ = api.do(t, http.MethodDelete, "/api/v1/documents/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestLedgerAPI_StockItems(t *testing.T) {
	api := newLedgerAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/v1/stock-items", map[string]any{"name": "Cable", "unit_price": "2.50", "quantity": "10"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	first := decode[invoicing.StockItemResponse](t, env)

	code, env = api.do(t, http.MethodPost, "/api/v1/stock-items", map[string]any{"name": "Switch", "unit_price": "40"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	second := decode[invoicing.StockItemResponse](t, env)
	assert.Equal(t, first.SequentialID+1, second.SequentialID)

	code, env = api.do(t, http.MethodPost, "/api/v1/stock-items", map[string]any{"unit_price": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "name", env.Error.Details[0].Field)

	code, env = api.do(t, http.MethodGet, "/api/v1/stock-items?page_size=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]invoicing.StockItemResponse](t, env), 1)
	assert.Equal(t, int64(2), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
}
