package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

var _ repository.SeriesRepository = (*SeriesRepo)(nil)

// SeriesRepo implementa SeriesRepository sobre PostgreSQL.
type SeriesRepo struct {
	q Querier
}

// NewSeriesRepository construye el repositorio. Pasar pool o tx (Querier).
func NewSeriesRepository(q Querier) *SeriesRepo {
	return &SeriesRepo{q: q}
}

const seriesColumns = `id, tenant_id, code, prefix, current_number, is_active, is_default, created_at, updated_at`

func (r *SeriesRepo) Create(ctx context.Context, s *entity.Series) error {
	const q = `
		INSERT INTO invoice_series
			(id, tenant_id, code, prefix, current_number, is_active, is_default, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, q,
		s.ID, s.TenantID, s.Code, nullIfEmpty(s.Prefix), s.CurrentNumber, s.IsActive, s.IsDefault,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert invoice_series: %w", err)
	}
	return nil
}

func (r *SeriesRepo) GetByID(ctx context.Context, id string) (*entity.Series, error) {
	s, err := scanSeries(r.q.QueryRow(ctx, `SELECT `+seriesColumns+` FROM invoice_series WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice_series by id: %w", err)
	}
	return s, nil
}

// GetDefault devuelve la serie marcada por defecto del tenant (índice único parcial).
func (r *SeriesRepo) GetDefault(ctx context.Context, tenantID string) (*entity.Series, error) {
	const q = `SELECT ` + seriesColumns + `
		FROM invoice_series
		WHERE tenant_id  = $1
		  AND is_default = true
		LIMIT 1`
	s, err := scanSeries(r.q.QueryRow(ctx, q, tenantID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get default invoice_series: %w", err)
	}
	return s, nil
}

// LockByID es la lectura crítica de la emisión: SELECT ... FOR UPDATE deja esperando a
// cualquier otra transacción que quiera la misma serie hasta nuestro commit o rollback.
func (r *SeriesRepo) LockByID(ctx context.Context, id string) (*entity.Series, error) {
	s, err := scanSeries(r.q.QueryRow(ctx, `SELECT `+seriesColumns+` FROM invoice_series WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, conflictOr(err, "lock invoice_series")
	}
	return s, nil
}

func (r *SeriesRepo) IncrementCurrent(ctx context.Context, id string) (int64, error) {
	const q = `
		UPDATE invoice_series
		SET current_number = current_number + 1, updated_at = now()
		WHERE id = $1
		RETURNING current_number`
	var n int64
	if err := r.q.QueryRow(ctx, q, id).Scan(&n); err != nil {
		if isNoRows(err) {
			return 0, domain.ErrSeriesNotFound
		}
		return 0, conflictOr(err, "increment invoice_series")
	}
	return n, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanSeries(row pgxScanner) (*entity.Series, error) {
	var s entity.Series
	var prefix *string
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Code, &prefix, &s.CurrentNumber,
		&s.IsActive, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Prefix = derefStr(prefix)
	return &s, nil
}
