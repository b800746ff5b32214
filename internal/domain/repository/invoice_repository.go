package repository

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para Invoice y sus líneas.
type InvoiceRepository interface {
	// Create persiste la cabecera y las líneas de un borrador.
	Create(ctx context.Context, invoice *entity.Invoice) error
	// GetByID devuelve la factura con sus líneas, o nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// LockByID igual que GetByID pero bloquea la fila hasta el fin de la transacción.
	LockByID(ctx context.Context, id string) (*entity.Invoice, error)
	// MarkIssued congela número, número completo y estado issued.
	MarkIssued(ctx context.Context, invoice *entity.Invoice) error
	UpdateStatus(ctx context.Context, id, status string) error
}
