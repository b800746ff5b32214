package repository

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// TenantRepository define el puerto de persistencia para Tenant.
type TenantRepository interface {
	Create(ctx context.Context, tenant *entity.Tenant) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
	UpdateTransmissionMode(ctx context.Context, id, mode string) error
}
