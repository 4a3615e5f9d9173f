package router

import (
	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/handler"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/middleware"
)

// Handlers bundles the handlers served by the invoicing API
type Handlers struct {
	Clients   *handler.ClientHandler
	Documents *handler.DocumentHandler
	Invoices  *handler.InvoiceHandler
	Payments  *handler.PaymentHandler
	Stock     *handler.StockHandler
	System    *handler.SystemHandler
}

// Mount registers the probes on the engine root and every API route under
// /api/v1 behind auth. auth must set middleware.JWTUserIDKey for the handlers
// to find the owner of the request.
func Mount(engine *gin.Engine, h Handlers, auth gin.HandlerFunc) *Router {
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(auth, middleware.TracingAttributeInjector())

	for _, group := range h.DomainGroups() {
		r.Register(group)
	}
	r.Setup()
	return r
}

// DomainGroups returns the route groups of the API, one per resource
func (h Handlers) DomainGroups() []*DomainGroup {
	system := NewDomainGroup("system", "/system")
	system.GET("/ping", h.System.Ping).
		GET("/info", h.System.GetSystemInfo)

	clients := NewDomainGroup("clients", "/clients")
	clients.POST("", h.Clients.Create).
		GET("", h.Clients.List).
		GET("/:id", h.Clients.GetByID).
		PUT("/:id", h.Clients.Update).
		GET("/:id/balance", h.Clients.GetBalance).
		GET("/:id/account", h.Clients.GetAccount).
		POST("/:id/payments", h.Clients.RecordPayment).
		POST("/:id/reconcile", h.Clients.Reconcile)

	documents := NewDomainGroup("documents", "/documents")
	documents.POST("", h.Documents.Create).
		GET("", h.Documents.List).
		GET("/:id", h.Documents.GetByID).
		PUT("/:id", h.Documents.Update).
		DELETE("/:id", h.Documents.DeleteProforma).
		POST("/:id/convert", h.Documents.Convert)

	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.POST("/:id/payments", h.Invoices.AddPayment).
		GET("/:id/payments", h.Invoices.ListPayments).
		POST("/:id/settle", h.Invoices.Settle).
		POST("/:id/cancel", h.Invoices.Cancel).
		POST("/:id/restore", h.Invoices.Restore).
		DELETE("/:id", h.Invoices.Delete)

	payments := NewDomainGroup("payments", "/payments")
	payments.GET("", h.Payments.List).
		GET("/:id", h.Payments.GetByID).
		DELETE("/:id", h.Payments.Delete)

	stock := NewDomainGroup("stock", "/stock-items")
	stock.POST("", h.Stock.Create).
		GET("", h.Stock.List)

	return []*DomainGroup{system, clients, documents, invoices, payments, stock}
}
