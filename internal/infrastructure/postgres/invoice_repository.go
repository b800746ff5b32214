package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, tenant_id, customer_id, series_id, type, status, number, full_number, issue_date,
	subtotal, tax_total, total, issued_at, issued_by, created_at, updated_at`

// Create persiste la cabecera del borrador y sus líneas.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, tenant_id, customer_id, series_id, type, status, issue_date,
		                      subtotal, tax_total, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.TenantID, nullIfEmpty(invoice.CustomerID), nullIfEmpty(invoice.SeriesID),
		invoice.Type, invoice.Status, invoice.Date,
		invoice.Subtotal, invoice.TaxTotal, invoice.Total,
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, line := range invoice.Lines {
		if err := r.createLine(ctx, invoice.ID, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *InvoiceRepo) createLine(ctx context.Context, invoiceID string, line *entity.InvoiceLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	line.InvoiceID = invoiceID
	query := `
		INSERT INTO invoice_lines (id, invoice_id, position, description, quantity, unit_price, tax_rate, subtotal, tax_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.InvoiceID, line.Position, line.Description, line.Quantity, line.UnitPrice,
		line.TaxRate, line.Subtotal, line.TaxAmount,
	)
	if err != nil {
		return fmt.Errorf("insert invoice line: %w", err)
	}
	return nil
}

// GetByID obtiene una factura completa por ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// LockByID bloquea la fila de la factura: dos emisiones del mismo borrador se serializan
// y la segunda ve el estado issued.
func (r *InvoiceRepo) LockByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *InvoiceRepo) get(ctx context.Context, query, id string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, conflictOr(err, "get invoice")
	}
	if inv.Lines, err = r.linesByInvoiceID(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkIssued congela número y estado. El índice único (series_id, number) es el
// respaldo ante un número repetido: llega como domain.ErrConflict.
func (r *InvoiceRepo) MarkIssued(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET series_id   = $2,
		    number      = $3,
		    full_number = $4,
		    status      = $5,
		    issued_at   = $6,
		    issued_by   = $7,
		    updated_at  = $8
		WHERE id = $1 AND status = 'draft'`
	cmd, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.SeriesID, invoice.Number, invoice.FullNumber,
		entity.InvoiceStatusIssued, invoice.IssuedAt, nullIfEmpty(invoice.IssuedBy), invoice.UpdatedAt,
	)
	if err != nil {
		return conflictOr(err, "issue invoice")
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInvoiceNotDraft
	}
	return nil
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id, status string) error {
	cmd, err := r.q.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return conflictOr(err, "update invoice status")
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepo) linesByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	query := `
		SELECT id, invoice_id, position, description, quantity, unit_price, tax_rate, subtotal, tax_amount
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.TaxRate, &l.Subtotal, &l.TaxAmount); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanInvoice(row pgxScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var customerID, seriesID, fullNumber, issuedBy *string
	var number *int64
	err := row.Scan(
		&inv.ID, &inv.TenantID, &customerID, &seriesID, &inv.Type, &inv.Status,
		&number, &fullNumber, &inv.Date,
		&inv.Subtotal, &inv.TaxTotal, &inv.Total,
		&inv.IssuedAt, &issuedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.CustomerID = derefStr(customerID)
	inv.SeriesID = derefStr(seriesID)
	inv.FullNumber = derefStr(fullNumber)
	inv.IssuedBy = derefStr(issuedBy)
	if number != nil {
		inv.Number = *number
	}
	return &inv, nil
}
