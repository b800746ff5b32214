package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
)

// InvoiceHandler maneja las peticiones HTTP de facturación (protegido).
type InvoiceHandler struct {
	uc *billing.InvoiceUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *billing.InvoiceUseCase) *InvoiceHandler {
	return &InvoiceHandler{uc: uc}
}

// Create crea un borrador.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	invoice, err := h.uc.CreateDraft(c.Context(), tenantID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// GetByID obtiene el detalle completo de una factura.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	invoice, err := h.uc.GetInvoice(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(invoice)
}

// Issue emite un borrador: número, registro encadenado y trabajo de remisión.
// POST /api/invoices/:id/issue
func (h *InvoiceHandler) Issue(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	res, err := h.uc.Issue(c.Context(), tenantID, c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.Response())
}

// Void anula una factura emitida.
// POST /api/invoices/:id/void  {"reason": "..."}
func (h *InvoiceHandler) Void(c *fiber.Ctx) error {
	return h.reasonEvent(c, h.uc.Void)
}

// Rectify rectifica una factura emitida.
// POST /api/invoices/:id/rectify  {"reason": "..."}
func (h *InvoiceHandler) Rectify(c *fiber.Ctx) error {
	return h.reasonEvent(c, h.uc.Rectify)
}

type reasonEventFunc func(ctx context.Context, tenantID, invoiceID, actor, reason string) (*billing.IssueResult, error)

func (h *InvoiceHandler) reasonEvent(c *fiber.Ctx, fn reasonEventFunc) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.ReasonRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := fn(c.Context(), tenantID, c.Params("id"), userID, in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.Response())
}
