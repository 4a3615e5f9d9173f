package invoicing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

func newInvalidAmount(message string, amount decimal.Decimal) error {
	return shared.NewDomainErrorWithDetails(shared.CodeInvalidAmount, message, map[string]any{
		"amount": FormatMoney(amount),
	})
}

// ErrAmountExceedsOutstanding is returned when a settlement asks for more than the invoice still owes
func ErrAmountExceedsOutstanding(amount, outstanding decimal.Decimal) error {
	return shared.NewDomainErrorWithDetails(
		shared.CodeInvalidAmount,
		fmt.Sprintf("Amount %s exceeds invoice outstanding %s", FormatMoney(amount), FormatMoney(outstanding)),
		map[string]any{
			"amount":      FormatMoney(amount),
			"outstanding": FormatMoney(outstanding),
		},
	)
}

// ErrInsufficientBalance carries the derivable unallocated amount next to the requested one
func ErrInsufficientBalance(available, required decimal.Decimal) error {
	return shared.NewDomainErrorWithDetails(
		shared.CodeInsufficientBalance,
		fmt.Sprintf("Insufficient balance: available %s, required %s", FormatMoney(available), FormatMoney(required)),
		map[string]any{
			"available": FormatMoney(available),
			"required":  FormatMoney(required),
		},
	)
}

func errInvalidState(format string, args ...any) error {
	return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf(format, args...))
}
