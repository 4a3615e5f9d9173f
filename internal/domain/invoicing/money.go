package invoicing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept on stored amounts
const MoneyScale = 2

// RoundMoney rounds an amount half away from zero to MoneyScale digits
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney renders an amount for user-facing messages
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

func validatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount(amount)
	}
	return nil
}

// ErrNonPositiveAmount builds the INVALID_AMOUNT error for amount <= 0
func ErrNonPositiveAmount(amount decimal.Decimal) error {
	return newInvalidAmount(fmt.Sprintf("Amount must be positive, got %s", FormatMoney(amount)), amount)
}
