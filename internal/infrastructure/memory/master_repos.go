package memory

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// TenantRepo implementa repository.TenantRepository en memoria.
type TenantRepo struct {
	s *Store
	j *journal
}

func (r *TenantRepo) Create(ctx context.Context, t *entity.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[t.ID]; ok {
		return domain.ErrDuplicate
	}
	put(r.j, r.s.tenants, t.ID, cloneTenant(t))
	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, nil
	}
	return cloneTenant(t), nil
}

func (r *TenantRepo) UpdateTransmissionMode(ctx context.Context, id, mode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	c := cloneTenant(t)
	c.TransmissionMode = mode
	put(r.j, r.s.tenants, id, c)
	return nil
}

// CustomerRepo implementa repository.CustomerRepository en memoria.
type CustomerRepo struct {
	s *Store
	j *journal
}

func (r *CustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[c.ID]; ok {
		return domain.ErrDuplicate
	}
	put(r.j, r.s.customers, c.ID, cloneCustomer(c))
	return nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, nil
	}
	return cloneCustomer(c), nil
}

// SeriesRepo implementa repository.SeriesRepository en memoria.
type SeriesRepo struct {
	s *Store
	j *journal
}

func (r *SeriesRepo) Create(ctx context.Context, series *entity.Series) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.series {
		if existing.ID == series.ID || (existing.TenantID == series.TenantID && existing.Code == series.Code) {
			return domain.ErrDuplicate
		}
	}
	put(r.j, r.s.series, series.ID, cloneSeries(series))
	return nil
}

func (r *SeriesRepo) GetByID(ctx context.Context, id string) (*entity.Series, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	s, ok := r.s.series[id]
	if !ok {
		return nil, nil
	}
	return cloneSeries(s), nil
}

func (r *SeriesRepo) GetDefault(ctx context.Context, tenantID string) (*entity.Series, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, s := range r.s.series {
		if s.TenantID == tenantID && s.IsDefault {
			return cloneSeries(s), nil
		}
	}
	return nil, nil
}

// LockByID no bloquea nada adicional: RunBilling ya serializa las transacciones.
func (r *SeriesRepo) LockByID(ctx context.Context, id string) (*entity.Series, error) {
	return r.GetByID(ctx, id)
}

func (r *SeriesRepo) IncrementCurrent(ctx context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.series[id]
	if !ok {
		return 0, domain.ErrSeriesNotFound
	}
	c := cloneSeries(s)
	c.CurrentNumber++
	put(r.j, r.s.series, id, c)
	return c.CurrentNumber, nil
}
