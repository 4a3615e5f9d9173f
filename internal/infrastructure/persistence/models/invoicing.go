package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
)

// ClientModel is the persistence model for the Client domain entity.
type ClientModel struct {
	OwnedAggregateModel
	SequentialID int64  `gorm:"not null;index"`
	Name         string `gorm:"type:varchar(200);not null"`
	Phone        string `gorm:"type:varchar(50)"`
	Location     string `gorm:"type:varchar(200)"`
	VATNumber    string `gorm:"column:vat_number;type:varchar(50)"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client entity.
func (m *ClientModel) ToDomain() *invoicing.Client {
	return &invoicing.Client{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		SequentialID:       m.SequentialID,
		Name:               m.Name,
		Phone:              m.Phone,
		Location:           m.Location,
		VATNumber:          m.VATNumber,
	}
}

// FromDomain populates the persistence model from a domain Client entity.
func (m *ClientModel) FromDomain(c *invoicing.Client) {
	m.FromDomainOwnedAggregateRoot(c.OwnedAggregateRoot)
	m.SequentialID = c.SequentialID
	m.Name = c.Name
	m.Phone = c.Phone
	m.Location = c.Location
	m.VATNumber = c.VATNumber
}

// ClientModelFromDomain creates a new persistence model from a domain Client entity.
func ClientModelFromDomain(c *invoicing.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}

// DocumentModel is the persistence model for invoices and proformas.
// The client snapshot is flattened into client_* columns; line items are JSON.
type DocumentModel struct {
	OwnedAggregateModel
	Type     invoicing.DocumentType `gorm:"type:varchar(20);not null;index"`
	Number   string                 `gorm:"type:varchar(50);not null;index"`
	Sequence int64                  `gorm:"not null"`
	Date     time.Time              `gorm:"not null;index"`

	ClientID           uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientSequentialID int64     `gorm:"not null;default:0"`
	ClientName         string    `gorm:"type:varchar(200);not null"`
	ClientPhone        string    `gorm:"type:varchar(50)"`
	ClientLocation     string    `gorm:"type:varchar(200)"`
	ClientVATNumber    string    `gorm:"column:client_vat_number;type:varchar(50)"`

	Items       string              `gorm:"type:jsonb;not null"`
	LaborPrice  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	MandaysDays decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	MandaysRate decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Notes       string              `gorm:"type:text"`
	VATApplied  bool                `gorm:"column:vat_applied;not null;default:false"`
	VATRate     decimal.Decimal     `gorm:"column:vat_rate;type:decimal(6,4);not null;default:0"`

	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VATAmount decimal.Decimal `gorm:"column:vat_amount;type:decimal(18,2);not null;default:0"`
	Total     decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	TotalPaid       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Paid            bool            `gorm:"not null;default:false;index"`
	LastPaymentDate *time.Time

	Cancelled                    bool `gorm:"not null;default:false;index"`
	CancelledAt                  *time.Time
	PaymentsMovedToClientAccount *bool

	Status          invoicing.DocumentStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	Converted       bool                     `gorm:"not null;default:false"`
	ConvertedToID   *uuid.UUID               `gorm:"type:uuid"`
	ConvertedFromID *uuid.UUID               `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document entity.
func (m *DocumentModel) ToDomain() (*invoicing.Document, error) {
	var items []invoicing.DocumentItem
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
			return nil, fmt.Errorf("decode items of document %s: %w", m.ID, err)
		}
	}

	var mandays *invoicing.Mandays
	if m.MandaysDays.Valid {
		mandays = &invoicing.Mandays{Days: m.MandaysDays.Decimal, Rate: m.MandaysRate.Decimal}
	}

	return &invoicing.Document{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		Type:               m.Type,
		Number:             m.Number,
		Sequence:           m.Sequence,
		Date:               m.Date,
		Client: invoicing.ClientSnapshot{
			ClientID:     m.ClientID,
			SequentialID: m.ClientSequentialID,
			Name:         m.ClientName,
			Phone:        m.ClientPhone,
			Location:     m.ClientLocation,
			VATNumber:    m.ClientVATNumber,
		},
		Items:                        items,
		LaborPrice:                   m.LaborPrice,
		Mandays:                      mandays,
		Notes:                        m.Notes,
		VATApplied:                   m.VATApplied,
		VATRate:                      m.VATRate,
		Subtotal:                     m.Subtotal,
		VATAmount:                    m.VATAmount,
		Total:                        m.Total,
		TotalPaid:                    m.TotalPaid,
		Paid:                         m.Paid,
		LastPaymentDate:              m.LastPaymentDate,
		Cancelled:                    m.Cancelled,
		CancelledAt:                  m.CancelledAt,
		PaymentsMovedToClientAccount: m.PaymentsMovedToClientAccount,
		Status:                       m.Status,
		Converted:                    m.Converted,
		ConvertedToID:                m.ConvertedToID,
		ConvertedFromID:              m.ConvertedFromID,
	}, nil
}

// FromDomain populates the persistence model from a domain Document entity.
func (m *DocumentModel) FromDomain(d *invoicing.Document) error {
	items := d.Items
	if items == nil {
		items = []invoicing.DocumentItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items of document %s: %w", d.ID, err)
	}

	m.FromDomainOwnedAggregateRoot(d.OwnedAggregateRoot)
	m.Type = d.Type
	m.Number = d.Number
	m.Sequence = d.Sequence
	m.Date = d.Date
	m.ClientID = d.Client.ClientID
	m.ClientSequentialID = d.Client.SequentialID
	m.ClientName = d.Client.Name
	m.ClientPhone = d.Client.Phone
	m.ClientLocation = d.Client.Location
	m.ClientVATNumber = d.Client.VATNumber
	m.Items = string(encoded)
	m.LaborPrice = d.LaborPrice
	m.MandaysDays = decimal.NullDecimal{}
	m.MandaysRate = decimal.NullDecimal{}
	if d.Mandays != nil {
		m.MandaysDays = decimal.NewNullDecimal(d.Mandays.Days)
		m.MandaysRate = decimal.NewNullDecimal(d.Mandays.Rate)
	}
	m.Notes = d.Notes
	m.VATApplied = d.VATApplied
	m.VATRate = d.VATRate
	m.Subtotal = d.Subtotal
	m.VATAmount = d.VATAmount
	m.Total = d.Total
	m.TotalPaid = d.TotalPaid
	m.Paid = d.Paid
	m.LastPaymentDate = d.LastPaymentDate
	m.Cancelled = d.Cancelled
	m.CancelledAt = d.CancelledAt
	m.PaymentsMovedToClientAccount = d.PaymentsMovedToClientAccount
	m.Status = d.Status
	m.Converted = d.Converted
	m.ConvertedToID = d.ConvertedToID
	m.ConvertedFromID = d.ConvertedFromID
	return nil
}

// DocumentModelFromDomain creates a new persistence model from a domain Document entity.
func DocumentModelFromDomain(d *invoicing.Document) (*DocumentModel, error) {
	m := &DocumentModel{}
	if err := m.FromDomain(d); err != nil {
		return nil, err
	}
	return m, nil
}

// PaymentModel is the persistence model for the Payment domain entity.
type PaymentModel struct {
	OwnedAggregateModel
	ClientID          uuid.UUID               `gorm:"type:uuid;not null;index"`
	DocumentID        *uuid.UUID              `gorm:"type:uuid;index"`
	Amount            decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	PaymentDate       time.Time               `gorm:"not null;index"`
	Method            invoicing.PaymentMethod `gorm:"type:varchar(20);not null;default:'cash'"`
	Reference         string                  `gorm:"type:varchar(200)"`
	Notes             string                  `gorm:"type:text"`
	SettledToDocument bool                    `gorm:"not null;default:false"`
	SettledAt         *time.Time
	SplitFromID       *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	return &invoicing.Payment{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		ClientID:           m.ClientID,
		DocumentID:         m.DocumentID,
		Amount:             m.Amount,
		PaymentDate:        m.PaymentDate,
		Method:             m.Method,
		Reference:          m.Reference,
		Notes:              m.Notes,
		SettledToDocument:  m.SettledToDocument,
		SettledAt:          m.SettledAt,
		SplitFromID:        m.SplitFromID,
	}
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *invoicing.Payment) {
	m.FromDomainOwnedAggregateRoot(p.OwnedAggregateRoot)
	m.ClientID = p.ClientID
	m.DocumentID = p.DocumentID
	m.Amount = p.Amount
	m.PaymentDate = p.PaymentDate
	m.Method = p.Method
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.SettledToDocument = p.SettledToDocument
	m.SettledAt = p.SettledAt
	m.SplitFromID = p.SplitFromID
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment entity.
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// StockItemModel is the persistence model for the StockItem domain entity.
type StockItemModel struct {
	OwnedAggregateModel
	SequentialID int64           `gorm:"not null;index"`
	Name         string          `gorm:"type:varchar(200);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockItemModel) TableName() string {
	return "stock_items"
}

// ToDomain converts the persistence model to a domain StockItem entity.
func (m *StockItemModel) ToDomain() *invoicing.StockItem {
	return &invoicing.StockItem{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		SequentialID:       m.SequentialID,
		Name:               m.Name,
		UnitPrice:          m.UnitPrice,
		Quantity:           m.Quantity,
	}
}

// StockItemModelFromDomain creates a new persistence model from a domain StockItem entity.
func StockItemModelFromDomain(s *invoicing.StockItem) *StockItemModel {
	m := &StockItemModel{}
	m.FromDomainOwnedAggregateRoot(s.OwnedAggregateRoot)
	m.SequentialID = s.SequentialID
	m.Name = s.Name
	m.UnitPrice = s.UnitPrice
	m.Quantity = s.Quantity
	return m
}
