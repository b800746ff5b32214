package billing

import (
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// ToInvoiceResponse convierte la factura al DTO de la API.
func ToInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:         inv.ID,
		TenantID:   inv.TenantID,
		CustomerID: inv.CustomerID,
		SeriesID:   inv.SeriesID,
		Type:       inv.Type,
		Status:     inv.Status,
		Number:     inv.Number,
		FullNumber: inv.FullNumber,
		Date:       inv.Date.Format("2006-01-02"),
		Subtotal:   inv.Subtotal,
		TaxTotal:   inv.TaxTotal,
		Total:      inv.Total,
		IssuedAt:   inv.IssuedAt,
		Lines:      make([]dto.InvoiceLineResponse, 0, len(inv.Lines)),
	}
	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, dto.InvoiceLineResponse{
			Position:    l.Position,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			Subtotal:    l.Subtotal,
			TaxAmount:   l.TaxAmount,
		})
	}
	return resp
}

// ToLedgerEntryResponse convierte un registro de la cadena sin alterar payload ni huellas.
func ToLedgerEntryResponse(e *entity.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:          e.ID,
		InvoiceID:   e.InvoiceID,
		Sequence:    e.Sequence,
		EventType:   e.EventType,
		Hash:        e.Hash,
		PrevHash:    e.PrevHash,
		PrevEntryID: e.PrevEntryID,
		Payload:     e.Payload,
		RecordedBy:  e.RecordedBy,
		RecordedAt:  e.RecordedAt,
	}
}

// ToSubmissionJobResponse convierte un trabajo de remisión al DTO de la API.
func ToSubmissionJobResponse(j *entity.SubmissionJob) *dto.SubmissionJobResponse {
	return &dto.SubmissionJobResponse{
		ID:            j.ID,
		EntryID:       j.EntryID,
		Status:        j.Status,
		Attempts:      j.Attempts,
		MaxAttempts:   j.MaxAttempts,
		Response:      j.Response,
		ErrorMessage:  j.ErrorMessage,
		NextAttemptAt: j.NextAttemptAt,
		SentAt:        j.SentAt,
		CreatedAt:     j.CreatedAt,
	}
}
