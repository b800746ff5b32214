package memory

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// InvoiceRepo implementa repository.InvoiceRepository en memoria.
type InvoiceRepo struct {
	s *Store
	j *journal
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[inv.ID]; ok {
		return domain.ErrDuplicate
	}
	put(r.j, r.s.invoices, inv.ID, cloneInvoice(inv))
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *InvoiceRepo) LockByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

// MarkIssued aplica la misma unicidad (serie, número) que el índice de PostgreSQL.
func (r *InvoiceRepo) MarkIssued(ctx context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.invoices[inv.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, other := range r.s.invoices {
		if other.ID != inv.ID && other.SeriesID == inv.SeriesID && other.Number != 0 && other.Number == inv.Number {
			return domain.ErrConflict
		}
	}
	c := cloneInvoice(cur)
	c.SeriesID = inv.SeriesID
	c.Number = inv.Number
	c.FullNumber = inv.FullNumber
	c.Status = entity.InvoiceStatusIssued
	c.IssuedAt = cloneTime(inv.IssuedAt)
	c.IssuedBy = inv.IssuedBy
	c.UpdatedAt = inv.UpdatedAt
	put(r.j, r.s.invoices, inv.ID, c)
	return nil
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	c := cloneInvoice(cur)
	c.Status = status
	c.UpdatedAt = time.Now()
	put(r.j, r.s.invoices, id, c)
	return nil
}
