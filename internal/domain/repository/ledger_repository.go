package repository

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// LedgerRepository define el puerto de persistencia de la cadena de registros.
// No expone actualizaciones ni borrados: los registros son append-only.
type LedgerRepository interface {
	// LockTenantChain serializa los appends del tenant hasta el fin de la transacción.
	LockTenantChain(ctx context.Context, tenantID string) error
	// GetLatest devuelve el último registro del tenant, o nil, nil si la cadena está vacía.
	GetLatest(ctx context.Context, tenantID string) (*entity.LedgerEntry, error)
	// Append inserta el registro. Un enlace ya ocupado devuelve domain.ErrConflict.
	Append(ctx context.Context, entry *entity.LedgerEntry) error
	GetByID(ctx context.Context, id string) (*entity.LedgerEntry, error)
	// ListByTenant devuelve la cadena completa ordenada por recorded_at ascendente.
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.LedgerEntry, error)
}
