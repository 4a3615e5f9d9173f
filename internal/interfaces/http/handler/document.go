package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
)

// DocumentHandler handles invoice and proforma documents
type DocumentHandler struct {
	BaseHandler
	documents *invoicing.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *invoicing.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Create godoc
// @Summary      Create an invoice or proforma
// @Description  Computes totals and assigns the next document number for the type
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body invoicing.CreateDocumentRequest true "Document"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req invoicing.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// GetByID godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	documentID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), userID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// List godoc
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Param        type query string false "invoice or proforma"
// @Param        client_id query string false "Client ID" format(uuid)
// @Param        cancelled query bool false "Cancelled flag"
// @Param        paid query bool false "Paid flag"
// @Param        status query string false "active or deleted"
// @Success      200 {object} dto.Response
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var filter invoicing.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	docs, total, err := h.documents.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, max(filter.Page, 1), filter.PageSize)
}

// Update replaces the content of a document and recomputes its totals
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	documentID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), userID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Convert godoc
// @Summary      Convert a proforma into an invoice
// @Description  Creates a new invoice with its own number and marks the proforma converted
// @Tags         documents
// @Produce      json
// @Param        id path string true "Proforma ID" format(uuid)
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /documents/{id}/convert [post]
func (h *DocumentHandler) Convert(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	proformaID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.documents.ConvertProforma(c.Request.Context(), userID, proformaID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// DeleteProforma soft-deletes a proforma
// @Router /documents/{id} [delete]
func (h *DocumentHandler) DeleteProforma(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	documentID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	if err := h.documents.DeleteProforma(c.Request.Context(), userID, documentID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
