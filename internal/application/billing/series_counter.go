package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
)

// Reservation número reservado en una serie.
type Reservation struct {
	SeriesID   string
	Code       string
	Prefix     string
	Number     int64
	FullNumber string
}

// SeriesCounter reserva números consecutivos. El contador vive en la fila de la serie y
// se protege con su bloqueo; nunca hay un contador en memoria del proceso.
type SeriesCounter struct{}

// NewSeriesCounter crea el contador.
func NewSeriesCounter() *SeriesCounter {
	return &SeriesCounter{}
}

// Reserve bloquea la serie (o la serie por defecto del tenant si seriesID está vacío),
// valida las precondiciones y reserva el siguiente número. Debe llamarse con los
// repositorios de la transacción de emisión.
func (c *SeriesCounter) Reserve(ctx context.Context, repo repository.SeriesRepository, tenantID, seriesID string) (*Reservation, error) {
	if seriesID == "" {
		def, err := repo.GetDefault(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("serie por defecto: %w", err)
		}
		if def == nil {
			return nil, domain.ErrSeriesNotFound
		}
		seriesID = def.ID
	}

	series, err := repo.LockByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("bloquear serie: %w", err)
	}
	if series == nil {
		return nil, domain.ErrSeriesNotFound
	}
	if series.TenantID != tenantID {
		return nil, domain.ErrSeriesTenantMismatch
	}
	if !series.IsActive {
		return nil, domain.ErrSeriesInactive
	}

	number, err := repo.IncrementCurrent(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("reservar número: %w", err)
	}
	return &Reservation{
		SeriesID:   series.ID,
		Code:       series.Code,
		Prefix:     series.Prefix,
		Number:     number,
		FullNumber: verifactu.FormatFullNumber(series.Prefix, series.Code, number),
	}, nil
}
