package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
)

// ClientHandler handles client and client-account endpoints
type ClientHandler struct {
	BaseHandler
	clients    *invoicing.ClientService
	settlement *invoicing.SettlementService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients *invoicing.ClientService, settlement *invoicing.SettlementService) *ClientHandler {
	return &ClientHandler{clients: clients, settlement: settlement}
}

// Create godoc
// @Summary      Create a client
// @Description  Creates a client with the next sequential client number
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        request body invoicing.CreateClientRequest true "Client"
// @Success      201 {object} dto.Response
// @Router       /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req invoicing.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	client, err := h.clients.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, client)
}

// GetByID godoc
// @Summary      Get a client
// @Tags         clients
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /clients/{id} [get]
func (h *ClientHandler) GetByID(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	client, err := h.clients.GetByID(c.Request.Context(), userID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// List godoc
// @Summary      List clients
// @Tags         clients
// @Produce      json
// @Param        search query string false "Name, phone or VAT number"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response
// @Router       /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var filter invoicing.ClientListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	clients, total, err := h.clients.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, clients, total, max(filter.Page, 1), filter.PageSize)
}

// Update godoc
// @Summary      Update a client
// @Description  Existing document snapshots keep the old client details
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Router       /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	client, err := h.clients.Update(c.Request.Context(), userID, clientID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// GetBalance returns the unallocated balance of a client
// @Router /clients/{id}/balance [get]
func (h *ClientHandler) GetBalance(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	balance, err := h.settlement.GetClientBalance(c.Request.Context(), userID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// GetAccount returns the balance, unallocated payments and outstanding invoices of a client
// @Router /clients/{id}/account [get]
func (h *ClientHandler) GetAccount(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	account, err := h.settlement.GetClientAccount(c.Request.Context(), userID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// RecordPayment godoc
// @Summary      Record an on-account payment
// @Description  Adds money to the client's unallocated balance
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Param        request body invoicing.RecordClientPaymentRequest true "Payment"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /clients/{id}/payments [post]
func (h *ClientHandler) RecordPayment(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	var req invoicing.RecordClientPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.settlement.RecordClientPayment(c.Request.Context(), userID, clientID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Reconcile recomputes the paid state of every invoice of the client
// @Router /clients/{id}/reconcile [post]
func (h *ClientHandler) Reconcile(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	clientID, ok := h.requirePathID(c, "id")
	if !ok {
		return
	}

	result, err := h.settlement.ReconcileClient(c.Request.Context(), userID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
