package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
)

// InvoiceHandler exposes the settlement workflows of a single invoice
type InvoiceHandler struct {
	BaseHandler
	settlement *invoicing.SettlementService
	payments   *invoicing.PaymentQueryService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(settlement *invoicing.SettlementService, payments *invoicing.PaymentQueryService) *InvoiceHandler {
	return &InvoiceHandler{settlement: settlement, payments: payments}
}

// AddPayment godoc
// @Summary      Add a payment to an invoice
// @Description  source=new records fresh money against the invoice.
// @Description  source=client_account draws the amount from the client's unallocated payments, oldest first.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body invoicing.AddPaymentRequest true "Payment"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.Response "Another payment for this invoice is in flight"
// @Failure      422 {object} dto.Response
// @Router       /invoices/{id}/payments [post]
func (h *InvoiceHandler) AddPayment(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.settlement.AddPayment(c.Request.Context(), userID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListPayments returns the payments settled to an invoice
// @Router /invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListByDocument(c.Request.Context(), userID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Settle godoc
// @Summary      Settle an invoice from the client balance
// @Description  Partial settlement is allowed. The amount may not exceed the outstanding amount or the balance.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body invoicing.SettleInvoiceRequest true "Settlement"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /invoices/{id}/settle [post]
func (h *InvoiceHandler) Settle(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.SettleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.settlement.SettleInvoiceFromBalance(c.Request.Context(), userID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel godoc
// @Summary      Cancel an invoice
// @Description  An invoice holding payments needs a disposition: move_to_client_account or keep_history.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body invoicing.CancelInvoiceRequest false "Disposition"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response "ERR_DISPOSITION_REQUIRED"
// @Router       /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	result, err := h.settlement.CancelInvoice(c.Request.Context(), userID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Restore reactivates a cancelled invoice without re-allocating payments
// @Router /invoices/{id}/restore [post]
func (h *InvoiceHandler) Restore(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.settlement.RestoreInvoice(c.Request.Context(), userID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Delete permanently removes a cancelled invoice
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	invoiceID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	result, err := h.settlement.PermanentlyDeleteInvoice(c.Request.Context(), userID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
