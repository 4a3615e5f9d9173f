package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DocumentService manages invoices and proformas
type DocumentService struct {
	documents      invoicing.DocumentRepository
	clients        invoicing.ClientRepository
	numbering      *NumberingService
	reconciler     *InvoiceReconciler
	defaultVATRate decimal.Decimal
	logger         *zap.Logger
	now            func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documents invoicing.DocumentRepository,
	clients invoicing.ClientRepository,
	numbering *NumberingService,
	reconciler *InvoiceReconciler,
	defaultVATRate decimal.Decimal,
	log *zap.Logger,
) *DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentService{
		documents:      documents,
		clients:        clients,
		numbering:      numbering,
		reconciler:     reconciler,
		defaultVATRate: defaultVATRate,
		logger:         log,
		now:            time.Now,
	}
}

func (s *DocumentService) content(req DocumentContentRequest) invoicing.DocumentContent {
	date := s.now()
	if req.Date != nil {
		date = *req.Date
	}
	vatRate := s.defaultVATRate
	if req.VATRate != nil {
		vatRate = *req.VATRate
	}
	items := make([]invoicing.DocumentItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = invoicing.DocumentItem{
			Description: item.Description,
			StockItemID: item.StockItemID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	var mandays *invoicing.Mandays
	if req.Mandays != nil {
		mandays = &invoicing.Mandays{Days: req.Mandays.Days, Rate: req.Mandays.Rate}
	}
	return invoicing.DocumentContent{
		Date:       date,
		Items:      items,
		LaborPrice: req.LaborPrice,
		Mandays:    mandays,
		Notes:      req.Notes,
		VATApplied: req.VATApplied,
		VATRate:    vatRate,
	}
}

// Create numbers and stores a new invoice or proforma.
// The client is copied into the document as a snapshot.
func (s *DocumentService) Create(ctx context.Context, userID uuid.UUID, req CreateDocumentRequest) (*DocumentResponse, error) {
	docType := invoicing.DocumentType(req.Type)
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID,
		telemetry.SpanAttrDocumentType, req.Type,
	)

	if !docType.IsValid() {
		err := shared.NewDomainError(shared.CodeInvalidInput, "Invalid document type")
		telemetry.RecordError(span, err)
		return nil, err
	}

	client, err := s.clients.FindByID(ctx, userID, req.ClientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	content := s.content(req.DocumentContentRequest)
	// a number is issued only for content that will be saved
	if err := content.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	number, seq, err := s.numbering.NextDocumentNumber(ctx, userID, docType, content.Date)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	doc, err := invoicing.NewDocument(userID, docType, number, seq, client.Snapshot(), content)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save document %s: %w", number, err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentNumber, number)
	logger.WithLogger(ctx, s.logger).Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("total", doc.Total.StringFixed(2)),
	)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetByID returns one document
func (s *DocumentService) GetByID(ctx context.Context, userID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// List returns a page of documents and the total number matching the filter
func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	domainFilter := invoicing.DocumentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		ClientID:  filter.ClientID,
		Cancelled: filter.Cancelled,
		Paid:      filter.Paid,
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}
	if filter.Type != "" {
		docType := invoicing.DocumentType(filter.Type)
		domainFilter.Type = &docType
	}
	if filter.Status != "" {
		status := invoicing.DocumentStatus(filter.Status)
		domainFilter.Status = &status
	}

	docs, err := s.documents.FindAll(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	total, err := s.documents.Count(ctx, userID, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return ToDocumentResponses(docs), total, nil
}

// Update replaces the content of a document and recomputes its totals.
// Invoices are reconciled afterwards so paid follows the new total.
func (s *DocumentService) Update(ctx context.Context, userID, documentID uuid.UUID, req UpdateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "update")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID)

	doc, err := s.documents.FindByID(ctx, userID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := doc.Revise(s.content(req.DocumentContentRequest)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.documents.SaveWithLock(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to update document %s: %w", doc.Number, err)
	}

	if doc.IsInvoice() {
		reconciled, err := s.reconciler.ReconcileWithRetry(ctx, userID, doc.ID, "update_document")
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to reconcile invoice %s: %w", doc.Number, err)
		}
		doc = reconciled
	}

	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// ConvertProforma creates an invoice from a proforma and marks the proforma converted.
// The proforma itself never becomes an invoice.
func (s *DocumentService) ConvertProforma(ctx context.Context, userID, proformaID uuid.UUID) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "convert_proforma")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, proformaID)

	proforma, err := s.documents.FindByID(ctx, userID, proformaID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := proforma.EnsureConvertible(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	content := proforma.Content()
	content.Date = s.now()
	number, seq, err := s.numbering.NextDocumentNumber(ctx, userID, invoicing.DocumentTypeInvoice, content.Date)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoice, err := invoicing.NewDocument(userID, invoicing.DocumentTypeInvoice, number, seq, proforma.Client, content)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoice.ConvertedFromID = &proforma.ID

	if err := s.documents.Save(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice %s: %w", number, err)
	}
	if err := proforma.MarkConverted(invoice.ID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.documents.SaveWithLock(ctx, proforma); err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Error("invoice created but proforma not marked converted",
			zap.String("proforma_id", proforma.ID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to mark proforma %s converted: %w", proforma.Number, err)
	}

	logger.WithLogger(ctx, s.logger).Info("proforma converted",
		zap.String("proforma", proforma.Number),
		zap.String("invoice", invoice.Number),
	)
	resp := ToDocumentResponse(invoice)
	return &resp, nil
}

// DeleteProforma soft-deletes a proforma. Invoices are cancelled instead.
func (s *DocumentService) DeleteProforma(ctx context.Context, userID, documentID uuid.UUID) error {
	doc, err := s.documents.FindByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := doc.SoftDelete(); err != nil {
		return err
	}
	if err := s.documents.SaveWithLock(ctx, doc); err != nil {
		return fmt.Errorf("failed to delete proforma %s: %w", doc.Number, err)
	}
	logger.WithLogger(ctx, s.logger).Info("proforma deleted", zap.String("number", doc.Number))
	return nil
}
