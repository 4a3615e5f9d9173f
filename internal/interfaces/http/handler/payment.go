package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
)

// PaymentHandler handles payment queries and deletion
type PaymentHandler struct {
	BaseHandler
	payments   *invoicing.PaymentQueryService
	settlement *invoicing.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *invoicing.PaymentQueryService, settlement *invoicing.SettlementService) *PaymentHandler {
	return &PaymentHandler{payments: payments, settlement: settlement}
}

// List returns payments filtered by client, document or allocation state
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var filter invoicing.PaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	payments, err := h.payments.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// GetByID returns a single payment
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetByID(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	paymentID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), userID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Delete godoc
// @Summary      Delete a payment
// @Description  Reconciles the invoice the payment was settled to, if it still exists
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	paymentID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	result, err := h.settlement.DeletePayment(c.Request.Context(), userID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
