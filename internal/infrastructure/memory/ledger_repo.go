package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// LedgerRepo implementa repository.LedgerRepository en memoria.
type LedgerRepo struct {
	s *Store
	j *journal
}

// LockTenantChain no necesita bloqueo propio: RunBilling ya serializa las transacciones.
func (r *LedgerRepo) LockTenantChain(ctx context.Context, tenantID string) error {
	return ctx.Err()
}

func (r *LedgerRepo) GetLatest(ctx context.Context, tenantID string) (*entity.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *entity.LedgerEntry
	for _, e := range r.s.entries {
		if e.TenantID == tenantID && (latest == nil || e.Sequence > latest.Sequence) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneEntry(latest), nil
}

// Append aplica las mismas restricciones de enlace que los índices únicos de PostgreSQL.
func (r *LedgerRepo) Append(ctx context.Context, entry *entity.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.ID == entry.ID {
			return domain.ErrDuplicate
		}
		if e.TenantID != entry.TenantID {
			continue
		}
		switch {
		case e.Sequence == entry.Sequence:
			return domain.ErrConflict
		case entry.PrevEntryID == nil && e.PrevEntryID == nil:
			return domain.ErrConflict
		case entry.PrevEntryID != nil && e.PrevEntryID != nil && *e.PrevEntryID == *entry.PrevEntryID:
			return domain.ErrConflict
		}
	}
	put(r.j, r.s.entries, entry.ID, cloneEntry(entry))
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id string) (*entity.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, nil
	}
	return cloneEntry(e), nil
}

func (r *LedgerRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.LedgerEntry, 0)
	for _, e := range r.s.entries {
		if e.TenantID == tenantID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}
