package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// PaymentQueryService serves read-only payment listings
type PaymentQueryService struct {
	payments invoicing.PaymentRepository
}

// NewPaymentQueryService creates a new PaymentQueryService
func NewPaymentQueryService(payments invoicing.PaymentRepository) *PaymentQueryService {
	return &PaymentQueryService{payments: payments}
}

// GetByID returns one payment
func (s *PaymentQueryService) GetByID(ctx context.Context, userID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.payments.FindByID(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// List returns payments filtered by client, document or allocation state
func (s *PaymentQueryService) List(ctx context.Context, userID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, error) {
	payments, err := s.payments.FindAll(ctx, userID, invoicing.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		ClientID:    filter.ClientID,
		DocumentID:  filter.DocumentID,
		Unallocated: filter.Unallocated,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return ToPaymentResponses(payments), nil
}

// ListByDocument returns the payments allocated to a document
func (s *PaymentQueryService) ListByDocument(ctx context.Context, userID, documentID uuid.UUID) ([]PaymentResponse, error) {
	payments, err := s.payments.FindByDocument(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document payments: %w", err)
	}
	return ToPaymentResponses(payments), nil
}
