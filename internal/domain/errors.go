package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrConflict señala un conflicto de concurrencia (número de serie o enlace de la
	// cadena ya ocupado). El llamador debe reintentar la emisión completa.
	ErrConflict = errors.New("conflicto con el estado actual, reintentar la operación")

	// Precondiciones de emisión: se rechaza la transacción antes de escribir.
	ErrSeriesNotFound       = errors.New("serie de numeración no encontrada")
	ErrSeriesInactive       = errors.New("serie de numeración inactiva")
	ErrSeriesTenantMismatch = errors.New("la serie no pertenece al tenant")
	ErrInvoiceNotDraft      = errors.New("la factura no está en borrador")
	ErrInvoiceNotIssued     = errors.New("la factura no está emitida")

	// ErrTransmissionDisabled queda como motivo del trabajo cuando el tenant desactivó la
	// remisión después de encolarlo.
	ErrTransmissionDisabled = errors.New("transmission disabled for tenant")
)

// IsPrecondition indica si err es un rechazo de precondición de emisión.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrSeriesNotFound) ||
		errors.Is(err, ErrSeriesInactive) ||
		errors.Is(err, ErrSeriesTenantMismatch) ||
		errors.Is(err, ErrInvoiceNotDraft) ||
		errors.Is(err, ErrInvoiceNotIssued)
}
