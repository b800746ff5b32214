package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	InvoiceUC     *billing.InvoiceUseCase
	ChainVerifier *billing.ChainVerifier
	Worker        *billing.SubmissionWorker
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Invoices
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.InvoiceUC)
	writers := RequireRole(RoleAdmin, RoleFacturador)
	invoices.Post("/", writers, invoiceHandler.Create)
	invoices.Get("/:id", RequireRole(RoleAdmin, RoleFacturador, RoleAuditor), invoiceHandler.GetByID)
	invoices.Post("/:id/issue", writers, invoiceHandler.Issue)
	invoices.Post("/:id/void", writers, invoiceHandler.Void)
	invoices.Post("/:id/rectify", writers, invoiceHandler.Rectify)

	// Ledger (sólo lectura)
	ledger := protected.Group("/ledger", RequireRole(RoleAdmin, RoleAuditor))
	ledgerHandler := NewLedgerHandler(deps.ChainVerifier)
	ledger.Get("/verify", ledgerHandler.Verify)
	ledger.Get("/export", ledgerHandler.Export)

	// Submissions
	submissions := protected.Group("/submissions")
	submissionHandler := NewSubmissionHandler(deps.Worker)
	submissions.Post("/process", RequireRole(RoleAdmin), submissionHandler.Process)
	submissions.Get("/:id", RequireRole(RoleAdmin, RoleFacturador, RoleAuditor), submissionHandler.GetByID)
}
