package invoicing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

// Client is the authoritative customer record. Documents never reference it
// live; they embed a ClientSnapshot taken at creation time.
type Client struct {
	shared.OwnedAggregateRoot
	SequentialID int64
	Name         string
	Phone        string
	Location     string
	VATNumber    string
}

// NewClient creates a client. sequentialID must come from the client sequence.
func NewClient(userID uuid.UUID, sequentialID int64, name string) (*Client, error) {
	name = strings.TrimSpace(name)
	if err := ValidateClientName(name); err != nil {
		return nil, err
	}
	if sequentialID <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Client sequential ID must be positive")
	}

	return &Client{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		SequentialID:       sequentialID,
		Name:               name,
	}, nil
}

// ValidateClientName checks a client name before a client number is issued for it
func ValidateClientName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Client name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Client name cannot exceed 200 characters")
	}
	return nil
}

// SetContact updates the contact fields
func (c *Client) SetContact(phone, location, vatNumber string) {
	c.Phone = strings.TrimSpace(phone)
	c.Location = strings.TrimSpace(location)
	c.VATNumber = strings.TrimSpace(vatNumber)
	c.Touch()
}

// Rename changes the display name
func (c *Client) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Client name cannot be empty")
	}
	c.Name = name
	c.Touch()
	return nil
}

// Snapshot copies the client fields that a document keeps
func (c *Client) Snapshot() ClientSnapshot {
	return ClientSnapshot{
		ClientID:     c.ID,
		SequentialID: c.SequentialID,
		Name:         c.Name,
		Phone:        c.Phone,
		Location:     c.Location,
		VATNumber:    c.VATNumber,
	}
}

// ClientSnapshot is the denormalised copy of a client embedded in a document.
// It is a value object: later edits to the Client do not touch it.
type ClientSnapshot struct {
	ClientID     uuid.UUID `json:"client_id"`
	SequentialID int64     `json:"sequential_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	VATNumber    string    `json:"vat_number,omitempty"`
}
