package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ClientService manages clients
type ClientService struct {
	clients   invoicing.ClientRepository
	numbering *NumberingService
	logger    *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(clients invoicing.ClientRepository, numbering *NumberingService, log *zap.Logger) *ClientService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientService{clients: clients, numbering: numbering, logger: log}
}

// Create issues the next client number and stores the client
func (s *ClientService) Create(ctx context.Context, userID uuid.UUID, req CreateClientRequest) (*ClientResponse, error) {
	if err := invoicing.ValidateClientName(req.Name); err != nil {
		return nil, err
	}
	seq, err := s.numbering.NextID(ctx, userID, invoicing.SequenceKindClient)
	if err != nil {
		return nil, err
	}
	client, err := invoicing.NewClient(userID, seq, req.Name)
	if err != nil {
		return nil, err
	}
	client.SetContact(req.Phone, req.Location, req.VATNumber)

	if err := s.clients.Save(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}
	logger.WithLogger(ctx, s.logger).Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.Int64("sequential_id", client.SequentialID),
	)
	resp := ToClientResponse(client)
	return &resp, nil
}

// GetByID returns one client
func (s *ClientService) GetByID(ctx context.Context, userID, clientID uuid.UUID) (*ClientResponse, error) {
	client, err := s.clients.FindByID(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// List returns a page of clients and the total number matching the filter
func (s *ClientService) List(ctx context.Context, userID uuid.UUID, filter ClientListFilter) ([]ClientResponse, int64, error) {
	domainFilter := invoicing.ClientFilter{Filter: shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}

	clients, err := s.clients.FindAll(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	total, err := s.clients.Count(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return ToClientResponses(clients), total, nil
}

// Update edits the client record. Snapshots held by existing documents are left alone.
func (s *ClientService) Update(ctx context.Context, userID, clientID uuid.UUID, req UpdateClientRequest) (*ClientResponse, error) {
	client, err := s.clients.FindByID(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := client.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	phone, location, vat := client.Phone, client.Location, client.VATNumber
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.Location != nil {
		location = *req.Location
	}
	if req.VATNumber != nil {
		vat = *req.VATNumber
	}
	client.SetContact(phone, location, vat)

	if err := s.clients.Save(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	resp := ToClientResponse(client)
	return &resp, nil
}
