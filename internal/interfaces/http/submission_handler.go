package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
)

// SubmissionHandler consulta trabajos de remisión y dispara lotes manuales.
type SubmissionHandler struct {
	worker *billing.SubmissionWorker
}

// NewSubmissionHandler construye el handler.
func NewSubmissionHandler(worker *billing.SubmissionWorker) *SubmissionHandler {
	return &SubmissionHandler{worker: worker}
}

// Process procesa un lote con los trabajos del tenant del token; la cola de los demás
// tenants queda para el worker.
// POST /api/submissions/process?limit=50
func (h *SubmissionHandler) Process(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil || limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "limit inválido"})
	}
	stats, err := h.worker.ProcessBatch(c.Context(), tenantID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetByID GET /api/submissions/:id
func (h *SubmissionHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	job, err := h.worker.GetJob(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(billing.ToSubmissionJobResponse(job))
}
