package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
)

// =============================================================================
// Client DTOs
// =============================================================================

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=200"`
	Phone     string `json:"phone" binding:"max=50"`
	Location  string `json:"location" binding:"max=500"`
	VATNumber string `json:"vat_number" binding:"max=50"`
}

// UpdateClientRequest represents a request to update a client.
// Documents already issued keep their snapshot of the old values.
type UpdateClientRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=200"`
	Phone     *string `json:"phone" binding:"omitempty,max=50"`
	Location  *string `json:"location" binding:"omitempty,max=500"`
	VATNumber *string `json:"vat_number" binding:"omitempty,max=50"`
}

// ClientListFilter represents filter options for the client list
type ClientListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID           uuid.UUID `json:"id"`
	SequentialID int64     `json:"sequential_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	VATNumber    string    `json:"vat_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// ToClientResponse converts a domain Client to ClientResponse
func ToClientResponse(c *invoicing.Client) ClientResponse {
	return ClientResponse{
		ID:           c.ID,
		SequentialID: c.SequentialID,
		Name:         c.Name,
		Phone:        c.Phone,
		Location:     c.Location,
		VATNumber:    c.VATNumber,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Version:      c.Version,
	}
}

// ToClientResponses converts a slice of domain Clients
func ToClientResponses(clients []invoicing.Client) []ClientResponse {
	responses := make([]ClientResponse, len(clients))
	for i := range clients {
		responses[i] = ToClientResponse(&clients[i])
	}
	return responses
}

// =============================================================================
// Document DTOs
// =============================================================================

// DocumentItemRequest is one billed line of a document request
type DocumentItemRequest struct {
	Description string          `json:"description" binding:"required,min=1,max=500"`
	StockItemID *uuid.UUID      `json:"stock_item_id"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// MandaysRequest bills labour by the day
type MandaysRequest struct {
	Days decimal.Decimal `json:"days"`
	Rate decimal.Decimal `json:"rate"`
}

// DocumentContentRequest is the editable part shared by create and update
type DocumentContentRequest struct {
	Date       *time.Time            `json:"date"`
	Items      []DocumentItemRequest `json:"items" binding:"omitempty,dive"`
	LaborPrice decimal.Decimal       `json:"labor_price"`
	Mandays    *MandaysRequest       `json:"mandays"`
	Notes      string                `json:"notes" binding:"max=2000"`
	VATApplied bool                  `json:"vat_applied"`
	// VATRate falls back to the configured default when omitted
	VATRate *decimal.Decimal `json:"vat_rate"`
}

// CreateDocumentRequest represents a request to create an invoice or a proforma
type CreateDocumentRequest struct {
	Type     string    `json:"type" binding:"required,oneof=invoice proforma"`
	ClientID uuid.UUID `json:"client_id" binding:"required"`
	DocumentContentRequest
}

// UpdateDocumentRequest replaces the editable content of a document
type UpdateDocumentRequest struct {
	DocumentContentRequest
}

// DocumentListFilter represents filter options for the document list
type DocumentListFilter struct {
	Type      string     `form:"type" binding:"omitempty,oneof=invoice proforma"`
	ClientID  *uuid.UUID `form:"client_id"`
	Cancelled *bool      `form:"cancelled"`
	Paid      *bool      `form:"paid"`
	Status    string     `form:"status" binding:"omitempty,oneof=active deleted"`
	Search    string     `form:"search"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DocumentItemResponse is one billed line in API responses
type DocumentItemResponse struct {
	Description string          `json:"description"`
	StockItemID *uuid.UUID      `json:"stock_item_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// DocumentResponse represents an invoice or a proforma in API responses
type DocumentResponse struct {
	ID                           uuid.UUID                `json:"id"`
	Type                         string                   `json:"type"`
	Number                       string                   `json:"document_number"`
	Date                         time.Time                `json:"date"`
	Client                       invoicing.ClientSnapshot `json:"client"`
	Items                        []DocumentItemResponse   `json:"items"`
	LaborPrice                   decimal.Decimal          `json:"labor_price"`
	Mandays                      *invoicing.Mandays       `json:"mandays,omitempty"`
	Notes                        string                   `json:"notes,omitempty"`
	VATApplied                   bool                     `json:"vat_applied"`
	VATRate                      decimal.Decimal          `json:"vat_rate"`
	Subtotal                     decimal.Decimal          `json:"subtotal"`
	VATAmount                    decimal.Decimal          `json:"vat_amount"`
	Total                        decimal.Decimal          `json:"total"`
	TotalPaid                    decimal.Decimal          `json:"total_paid"`
	Outstanding                  decimal.Decimal          `json:"outstanding"`
	Paid                         bool                     `json:"paid"`
	PaymentState                 string                   `json:"payment_state"`
	LastPaymentDate              *time.Time               `json:"last_payment_date,omitempty"`
	Cancelled                    bool                     `json:"cancelled"`
	CancelledAt                  *time.Time               `json:"cancelled_at,omitempty"`
	PaymentsMovedToClientAccount *bool                    `json:"payments_moved_to_client_account,omitempty"`
	Status                       string                   `json:"status"`
	Converted                    bool                     `json:"converted"`
	ConvertedToID                *uuid.UUID               `json:"converted_to_id,omitempty"`
	ConvertedFromID              *uuid.UUID               `json:"converted_from_id,omitempty"`
	CreatedAt                    time.Time                `json:"created_at"`
	UpdatedAt                    time.Time                `json:"updated_at"`
	Version                      int                      `json:"version"`
}

// ToDocumentResponse converts a domain Document to DocumentResponse
func ToDocumentResponse(d *invoicing.Document) DocumentResponse {
	items := make([]DocumentItemResponse, len(d.Items))
	for i, item := range d.Items {
		items[i] = DocumentItemResponse{
			Description: item.Description,
			StockItemID: item.StockItemID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   invoicing.RoundMoney(item.LineTotal()),
		}
	}
	return DocumentResponse{
		ID:                           d.ID,
		Type:                         string(d.Type),
		Number:                       d.Number,
		Date:                         d.Date,
		Client:                       d.Client,
		Items:                        items,
		LaborPrice:                   d.LaborPrice,
		Mandays:                      d.Mandays,
		Notes:                        d.Notes,
		VATApplied:                   d.VATApplied,
		VATRate:                      d.VATRate,
		Subtotal:                     d.Subtotal,
		VATAmount:                    d.VATAmount,
		Total:                        d.Total,
		TotalPaid:                    d.TotalPaid,
		Outstanding:                  d.Outstanding(),
		Paid:                         d.Paid,
		PaymentState:                 string(d.PaymentState()),
		LastPaymentDate:              d.LastPaymentDate,
		Cancelled:                    d.Cancelled,
		CancelledAt:                  d.CancelledAt,
		PaymentsMovedToClientAccount: d.PaymentsMovedToClientAccount,
		Status:                       string(d.Status),
		Converted:                    d.Converted,
		ConvertedToID:                d.ConvertedToID,
		ConvertedFromID:              d.ConvertedFromID,
		CreatedAt:                    d.CreatedAt,
		UpdatedAt:                    d.UpdatedAt,
		Version:                      d.Version,
	}
}

// ToDocumentResponses converts a slice of domain Documents
func ToDocumentResponses(docs []invoicing.Document) []DocumentResponse {
	responses := make([]DocumentResponse, len(docs))
	for i := range docs {
		responses[i] = ToDocumentResponse(&docs[i])
	}
	return responses
}

// =============================================================================
// Payment DTOs
// =============================================================================

// PaymentSource selects where the money of AddPayment comes from
type PaymentSource string

const (
	// PaymentSourceNew records fresh money directly against the invoice
	PaymentSourceNew PaymentSource = "new"
	// PaymentSourceClientAccount draws on the client's unallocated balance
	PaymentSourceClientAccount PaymentSource = "client_account"
)

// AddPaymentRequest represents a payment made against one invoice
type AddPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Source      PaymentSource   `json:"source" binding:"omitempty,oneof=new client_account"`
	Method      string          `json:"payment_method" binding:"omitempty,oneof=cash bank_transfer check card other"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   string          `json:"reference" binding:"max=200"`
	Notes       string          `json:"notes" binding:"max=2000"`
}

// SettleInvoiceRequest draws amount from the client's balance onto an invoice
type SettleInvoiceRequest struct {
	ClientID uuid.UUID       `json:"client_id" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// CancelInvoiceRequest carries the disposition required when the invoice holds payments
type CancelInvoiceRequest struct {
	Disposition *string `json:"disposition" binding:"omitempty,oneof=move_to_client_account keep_history"`
}

// RecordClientPaymentRequest represents on-account money received from a client
type RecordClientPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"payment_method" binding:"omitempty,oneof=cash bank_transfer check card other"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   string          `json:"reference" binding:"max=200"`
	Notes       string          `json:"notes" binding:"max=2000"`
}

// PaymentListFilter represents filter options for the payment list
type PaymentListFilter struct {
	ClientID    *uuid.UUID `form:"client_id"`
	DocumentID  *uuid.UUID `form:"document_id"`
	Unallocated *bool      `form:"unallocated"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	ClientID          uuid.UUID       `json:"client_id"`
	DocumentID        *uuid.UUID      `json:"document_id"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentDate       time.Time       `json:"payment_date"`
	Method            string          `json:"payment_method"`
	Reference         string          `json:"reference,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	SettledToDocument bool            `json:"settled_to_document"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	SplitFromID       *uuid.UUID      `json:"split_from_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		ClientID:          p.ClientID,
		DocumentID:        p.DocumentID,
		Amount:            p.Amount,
		PaymentDate:       p.PaymentDate,
		Method:            string(p.Method),
		Reference:         p.Reference,
		Notes:             p.Notes,
		SettledToDocument: p.SettledToDocument,
		SettledAt:         p.SettledAt,
		SplitFromID:       p.SplitFromID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// ToPaymentResponses converts a slice of domain Payments
func ToPaymentResponses(payments []invoicing.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = ToPaymentResponse(&payments[i])
	}
	return responses
}

func toPaymentResponsesFromPtrs(payments []*invoicing.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		if p != nil {
			responses = append(responses, ToPaymentResponse(p))
		}
	}
	return responses
}

// AllocationResponse describes the payment rows an allocation touched
type AllocationResponse struct {
	Amount    decimal.Decimal   `json:"amount"`
	Allocated []PaymentResponse `json:"allocated"`
	Remainder *PaymentResponse  `json:"remainder,omitempty"`
	Split     bool              `json:"split"`
}

func toAllocationResponse(result *AllocationResult) *AllocationResponse {
	if result == nil {
		return nil
	}
	resp := &AllocationResponse{
		Amount:    result.Amount,
		Allocated: toPaymentResponsesFromPtrs(result.Allocated),
		Split:     result.Remainder != nil,
	}
	if result.Remainder != nil {
		remainder := ToPaymentResponse(result.Remainder)
		resp.Remainder = &remainder
	}
	return resp
}

// SettlementResponse is returned by the payment-side settlement operations
type SettlementResponse struct {
	Invoice       *DocumentResponse   `json:"invoice,omitempty"`
	Payment       *PaymentResponse    `json:"payment,omitempty"`
	Allocation    *AllocationResponse `json:"allocation,omitempty"`
	ClientBalance decimal.Decimal     `json:"client_balance"`
}

// CancelInvoiceResponse reports the cancelled invoice and how many payments went back to the client
type CancelInvoiceResponse struct {
	Invoice          DocumentResponse `json:"invoice"`
	ReleasedPayments int              `json:"released_payments"`
	ClientBalance    decimal.Decimal  `json:"client_balance"`
}

// DeleteInvoiceResponse reports the payments left pointing at a deleted invoice
type DeleteInvoiceResponse struct {
	InvoiceID        uuid.UUID `json:"invoice_id"`
	Number           string    `json:"document_number"`
	OrphanedPayments int       `json:"orphaned_payments"`
}

// ClientAccountResponse summarises what a client owes and holds on account
type ClientAccountResponse struct {
	Client              ClientResponse     `json:"client"`
	Balance             decimal.Decimal    `json:"balance"`
	UnallocatedPayments []PaymentResponse  `json:"unallocated_payments"`
	OutstandingInvoices []DocumentResponse `json:"outstanding_invoices"`
	TotalOutstanding    decimal.Decimal    `json:"total_outstanding"`
}

// ClientBalanceResponse is the unallocated balance of a client
type ClientBalanceResponse struct {
	ClientID uuid.UUID       `json:"client_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// ReconcileClientResponse reports a client-wide reconciliation run
type ReconcileClientResponse struct {
	ClientID   uuid.UUID `json:"client_id"`
	Reconciled int       `json:"reconciled"`
	Changed    int       `json:"changed"`
}

// =============================================================================
// Stock item DTOs
// =============================================================================

// CreateStockItemRequest represents a request to create a stock item
type CreateStockItemRequest struct {
	Name      string          `json:"name" binding:"required,min=1,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// StockItemListFilter represents filter options for the stock item list
type StockItemListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// StockItemResponse represents a stock item in API responses
type StockItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	SequentialID int64           `json:"sequential_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToStockItemResponse converts a domain StockItem to StockItemResponse
func ToStockItemResponse(i *invoicing.StockItem) StockItemResponse {
	return StockItemResponse{
		ID:           i.ID,
		SequentialID: i.SequentialID,
		Name:         i.Name,
		UnitPrice:    i.UnitPrice,
		Quantity:     i.Quantity,
		CreatedAt:    i.CreatedAt,
	}
}
