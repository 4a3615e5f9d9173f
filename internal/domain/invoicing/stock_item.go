package invoicing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// StockItem is a sellable item numbered from the item sequence
type StockItem struct {
	shared.OwnedAggregateRoot
	SequentialID int64
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     decimal.Decimal
}

// NewStockItem creates a stock item
func NewStockItem(userID uuid.UUID, sequentialID int64, name string, unitPrice, quantity decimal.Decimal) (*StockItem, error) {
	name = strings.TrimSpace(name)
	if err := ValidateStockItem(name, unitPrice, quantity); err != nil {
		return nil, err
	}
	if sequentialID <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item sequential ID must be positive")
	}
	return &StockItem{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		SequentialID:       sequentialID,
		Name:               name,
		UnitPrice:          RoundMoney(unitPrice),
		Quantity:           quantity,
	}, nil
}

// ValidateStockItem checks item fields before an item number is issued for them
func ValidateStockItem(name string, unitPrice, quantity decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Item name cannot be empty")
	}
	if unitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Unit price cannot be negative")
	}
	if quantity.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity cannot be negative")
	}
	return nil
}
