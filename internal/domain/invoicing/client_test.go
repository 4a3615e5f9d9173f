package invoicing

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

func TestValidateClientName(t *testing.T) {
	assert.NoError(t, ValidateClientName("Acme"))
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(ValidateClientName("  ")))
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(ValidateClientName(strings.Repeat("a", 201))))

	client, err := NewClient(uuid.New(), 3, " Acme ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", client.Name)
}

func TestValidateStockItem(t *testing.T) {
	tests := []struct {
		name      string
		item      string
		unitPrice string
		quantity  string
	}{
		{"blank name", " ", "1", "1"},
		{"negative price", "Cable", "-0.01", "1"},
		{"negative quantity", "Cable", "1", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStockItem(tt.item, decimal.RequireFromString(tt.unitPrice), decimal.RequireFromString(tt.quantity))
			assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
		})
	}
	assert.NoError(t, ValidateStockItem("Cable", decimal.Zero, decimal.Zero))
}
