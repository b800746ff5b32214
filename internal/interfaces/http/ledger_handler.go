package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/samber/lo"
)

// LedgerHandler expone la verificación y exportación de la cadena del tenant.
type LedgerHandler struct {
	verifier *billing.ChainVerifier
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(verifier *billing.ChainVerifier) *LedgerHandler {
	return &LedgerHandler{verifier: verifier}
}

// Verify GET /api/ledger/verify
func (h *LedgerHandler) Verify(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	res, err := h.verifier.Verify(c.Context(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// Export GET /api/ledger/export
func (h *LedgerHandler) Export(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	entries, err := h.verifier.ExportChain(c.Context(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(lo.Map(entries, func(e *entity.LedgerEntry, _ int) dto.LedgerEntryResponse {
		return billing.ToLedgerEntryResponse(e)
	}))
}
