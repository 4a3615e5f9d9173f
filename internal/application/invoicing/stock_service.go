package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// StockService manages stock items
type StockService struct {
	items     invoicing.StockItemRepository
	numbering *NumberingService
}

// NewStockService creates a new StockService
func NewStockService(items invoicing.StockItemRepository, numbering *NumberingService) *StockService {
	return &StockService{items: items, numbering: numbering}
}

// Create issues the next item number and stores the item
func (s *StockService) Create(ctx context.Context, userID uuid.UUID, req CreateStockItemRequest) (*StockItemResponse, error) {
	if err := invoicing.ValidateStockItem(req.Name, req.UnitPrice, req.Quantity); err != nil {
		return nil, err
	}
	seq, err := s.numbering.NextID(ctx, userID, invoicing.SequenceKindItem)
	if err != nil {
		return nil, err
	}
	item, err := invoicing.NewStockItem(userID, seq, req.Name, req.UnitPrice, req.Quantity)
	if err != nil {
		return nil, err
	}
	if err := s.items.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save stock item: %w", err)
	}
	resp := ToStockItemResponse(item)
	return &resp, nil
}

// List returns a page of stock items and the total count
func (s *StockService) List(ctx context.Context, userID uuid.UUID, filter StockItemListFilter) ([]StockItemResponse, int64, error) {
	domainFilter := invoicing.StockItemFilter{Filter: shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Search:   filter.Search,
	}}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}

	items, err := s.items.FindAll(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock items: %w", err)
	}
	total, err := s.items.Count(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count stock items: %w", err)
	}
	responses := make([]StockItemResponse, len(items))
	for i := range items {
		responses[i] = ToStockItemResponse(&items[i])
	}
	return responses, total, nil
}
