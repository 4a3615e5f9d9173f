package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedgerTestDB opens an in-memory SQLite ledger. One connection keeps
// every statement on the same in-memory database.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// newMockGormDB opens GORM over sqlmock with the postgres dialect
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

var ledgerDay = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newLedgerClient(t *testing.T, userID uuid.UUID, seq int64, name string) *invoicing.Client {
	t.Helper()
	client, err := invoicing.NewClient(userID, seq, name)
	require.NoError(t, err)
	return client
}

func newLedgerInvoice(t *testing.T, client *invoicing.Client, seq int64, price string) *invoicing.Document {
	t.Helper()
	doc, err := invoicing.NewDocument(client.UserID, invoicing.DocumentTypeInvoice,
		invoicing.FormatDocumentNumber("INV", 2026, seq, 5), seq, client.Snapshot(),
		invoicing.DocumentContent{
			Date: ledgerDay,
			Items: []invoicing.DocumentItem{{
				Description: "Consulting",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString(price),
			}},
		})
	require.NoError(t, err)
	return doc
}

func newLedgerPayment(t *testing.T, client *invoicing.Client, amount string, date time.Time) *invoicing.Payment {
	t.Helper()
	payment, err := invoicing.NewPayment(client.UserID, client.ID, decimal.RequireFromString(amount),
		invoicing.PaymentMethodBankTransfer, date, "REF", "")
	require.NoError(t, err)
	return payment
}
