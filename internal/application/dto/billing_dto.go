package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest body para POST /api/invoices (crea un borrador).
// SeriesID vacío = serie por defecto del tenant al emitir.
type CreateInvoiceRequest struct {
	CustomerID string               `json:"customer_id"`
	SeriesID   string               `json:"series_id,omitempty"`
	Type       string               `json:"type,omitempty"` // standard por defecto
	Date       string               `json:"date,omitempty"` // YYYY-MM-DD; vacío = hoy
	Items      []InvoiceItemRequest `json:"items"`
}

// InvoiceItemRequest línea de factura. TaxRate admite porcentaje (21) o fracción (0.21).
type InvoiceItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// ReasonRequest body para anular o rectificar una factura emitida.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// InvoiceResponse factura con detalle para GET /api/invoices/:id.
type InvoiceResponse struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	CustomerID string                `json:"customer_id"`
	SeriesID   string                `json:"series_id,omitempty"`
	Type       string                `json:"type"`
	Status     string                `json:"status"`
	Number     int64                 `json:"number,omitempty"`
	FullNumber string                `json:"full_number,omitempty"`
	Date       string                `json:"date"`
	Subtotal   decimal.Decimal       `json:"subtotal"`
	TaxTotal   decimal.Decimal       `json:"tax_total"`
	Total      decimal.Decimal       `json:"total"`
	IssuedAt   *time.Time            `json:"issued_at,omitempty"`
	Lines      []InvoiceLineResponse `json:"lines"`
}

// InvoiceLineResponse línea de detalle en la respuesta.
type InvoiceLineResponse struct {
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// LedgerEventResponse respuesta de emitir, anular o rectificar: la factura más el
// registro encadenado y, si aplica, el trabajo de remisión creado.
type LedgerEventResponse struct {
	Invoice         *InvoiceResponse `json:"invoice"`
	LedgerEntryID   string           `json:"ledger_entry_id"`
	Hash            string           `json:"hash"`
	SubmissionJobID string           `json:"submission_job_id,omitempty"`
}

// LedgerEntryResponse registro de la cadena tal como está almacenado.
type LedgerEntryResponse struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Sequence    int64           `json:"sequence"`
	EventType   string          `json:"event_type"`
	Hash        string          `json:"hash"`
	PrevHash    *string         `json:"prev_hash"`
	PrevEntryID *string         `json:"prev_entry_id"`
	Payload     json.RawMessage `json:"payload"`
	RecordedBy  string          `json:"recorded_by"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// SubmissionJobResponse estado de un trabajo de remisión.
type SubmissionJobResponse struct {
	ID            string          `json:"id"`
	EntryID       string          `json:"entry_id"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	Response      json.RawMessage `json:"response,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
