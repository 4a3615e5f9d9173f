package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
)

// StockHandler handles stock items referenced by document lines
type StockHandler struct {
	BaseHandler
	stock *invoicing.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stock *invoicing.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// Create adds a stock item with the next sequential item id
// @Router /stock-items [post]
func (h *StockHandler) Create(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req invoicing.CreateStockItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	item, err := h.stock.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// List returns a page of stock items
// @Router /stock-items [get]
func (h *StockHandler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var filter invoicing.StockItemListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	items, total, err := h.stock.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, max(filter.Page, 1), filter.PageSize)
}
