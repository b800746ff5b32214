package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

// Asegura que TenantRepo implementa repository.TenantRepository.
var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo implementación del puerto TenantRepository sobre PostgreSQL.
type TenantRepo struct {
	q Querier
}

// NewTenantRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

// Create persiste un nuevo tenant.
func (r *TenantRepo) Create(ctx context.Context, t *entity.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, tax_id, address, email, status, transmission_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.Name, t.TaxID, t.Address, t.Email, t.Status, t.TransmissionMode,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetByID obtiene un tenant por ID.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	query := `
		SELECT id, name, tax_id, address, email, status, transmission_mode, created_at, updated_at
		FROM tenants WHERE id = $1`
	var t entity.Tenant
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.TaxID, &t.Address, &t.Email, &t.Status, &t.TransmissionMode,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// UpdateTransmissionMode cambia el modo de remisión del tenant.
func (r *TenantRepo) UpdateTransmissionMode(ctx context.Context, id, mode string) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE tenants SET transmission_mode = $2, updated_at = now() WHERE id = $1`, id, mode)
	if err != nil {
		return fmt.Errorf("update tenant transmission_mode: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
