package repository

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// SeriesRepository define el puerto de persistencia para las series de numeración.
type SeriesRepository interface {
	Create(ctx context.Context, series *entity.Series) error
	GetByID(ctx context.Context, id string) (*entity.Series, error)
	// GetDefault devuelve la serie por defecto del tenant, o nil, nil si no hay.
	GetDefault(ctx context.Context, tenantID string) (*entity.Series, error)

	// LockByID lee la serie bloqueando la fila hasta el fin de la transacción.
	// Devuelve nil, nil si no existe.
	LockByID(ctx context.Context, id string) (*entity.Series, error)
	// IncrementCurrent incrementa current_number y devuelve el nuevo valor.
	IncrementCurrent(ctx context.Context, id string) (int64, error)
}
