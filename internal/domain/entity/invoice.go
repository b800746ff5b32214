package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de la factura.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusIssued    = "issued"
	InvoiceStatusVoided    = "voided"
	InvoiceStatusRectified = "rectified"
)

// Tipos internos de factura (se traducen al código del regulador en el encoder).
const (
	InvoiceTypeStandard             = "standard"
	InvoiceTypeSimplified           = "simplified"
	InvoiceTypeSubstitute           = "substitute"
	InvoiceTypeRectifying           = "rectifying"
	InvoiceTypeRectifyingSimplified = "rectifying_simplified"
)

// Invoice representa la cabecera de una factura.
// Una vez emitida, Number, FullNumber, totales y líneas quedan congelados.
type Invoice struct {
	ID         string
	TenantID   string
	CustomerID string
	SeriesID   string // vacío = serie por defecto del tenant al emitir
	Type       string
	Status     string
	Number     int64  // 0 mientras está en borrador
	FullNumber string // ej: "FRA-2025-000001"
	Date       time.Time
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	Total      decimal.Decimal
	Lines      []*InvoiceLine
	IssuedAt   *time.Time
	IssuedBy   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsDraft indica si la factura todavía es editable.
func (i *Invoice) IsDraft() bool { return i.Status == InvoiceStatusDraft }

// InvoiceLine representa una línea de detalle de una factura.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // fracción (0.21 = 21 %)
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
}
