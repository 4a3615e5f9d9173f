package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockSequenceRepository is a mock implementation of invoicing.SequenceRepository
type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) Next(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	args := m.Called(ctx, userID, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSequenceRepository) Current(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	args := m.Called(ctx, userID, key)
	return args.Get(0).(int64), args.Error(1)
}

// MockDocumentRepository is a mock implementation of invoicing.DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.Document, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.DocumentFilter) ([]invoicing.Document, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]invoicing.Document), args.Error(1)
}

func (m *MockDocumentRepository) Count(ctx context.Context, userID uuid.UUID, filter invoicing.DocumentFilter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) FindOutstandingByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Document, error) {
	args := m.Called(ctx, userID, clientID)
	return args.Get(0).([]invoicing.Document), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *invoicing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) SaveWithLock(ctx context.Context, doc *invoicing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdatePaymentTotals(ctx context.Context, userID, id uuid.UUID, totalPaid decimal.Decimal, paid bool, at time.Time) error {
	args := m.Called(ctx, userID, id, totalPaid, paid, at)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of invoicing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, userID uuid.UUID, filter invoicing.PaymentFilter) ([]invoicing.Payment, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, userID, clientID)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, userID, clientID)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) SumByDocument(ctx context.Context, userID, documentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) SumUnallocatedByClient(ctx context.Context, userID, clientID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, clientID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) ApplyAllocation(ctx context.Context, plan *invoicing.AllocationPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveBatch(ctx context.Context, payments []*invoicing.Payment) error {
	args := m.Called(ctx, payments)
	return args.Error(0)
}

func (m *MockPaymentRepository) DeleteWithLock(ctx context.Context, payment *invoicing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

var (
	_ invoicing.SequenceRepository = (*MockSequenceRepository)(nil)
	_ invoicing.DocumentRepository = (*MockDocumentRepository)(nil)
	_ invoicing.PaymentRepository  = (*MockPaymentRepository)(nil)
)
