package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// SubmissionJobRepo implementa repository.SubmissionJobRepository en memoria.
type SubmissionJobRepo struct {
	s *Store
	j *journal
}

func (r *SubmissionJobRepo) Create(ctx context.Context, job *entity.SubmissionJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.jobs {
		if j.ID == job.ID || j.EntryID == job.EntryID {
			return domain.ErrDuplicate
		}
	}
	r.s.jobCounter++
	put(r.j, r.s.jobOrder, job.ID, r.s.jobCounter)
	put(r.j, r.s.jobs, job.ID, cloneJob(job))
	return nil
}

func (r *SubmissionJobRepo) GetByID(ctx context.Context, id string) (*entity.SubmissionJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(j), nil
}

func (r *SubmissionJobRepo) Claim(ctx context.Context, tenantID string, limit int, now time.Time, lease time.Duration) ([]*entity.SubmissionJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var candidates []*entity.SubmissionJob
	for _, j := range r.s.jobs {
		if (tenantID == "" || j.TenantID == tenantID) && leasable(j, now) && due(j, now) {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		return r.s.jobOrder[candidates[a].ID] < r.s.jobOrder[candidates[b].ID]
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*entity.SubmissionJob, 0, len(candidates))
	for _, j := range candidates {
		out = append(out, r.lock(j, now.Add(lease)))
	}
	return out, nil
}

func (r *SubmissionJobRepo) ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*entity.SubmissionJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok || !leasable(j, now) {
		return nil, nil
	}
	return r.lock(j, now.Add(lease)), nil
}

// Update exige que el trabajo conserve el lease con el que se leyó.
func (r *SubmissionJobRepo) Update(ctx context.Context, job *entity.SubmissionJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if !sameLease(cur.LockedUntil, job.LockedUntil) {
		return domain.ErrConflict
	}
	c := cloneJob(job)
	c.LockedUntil = nil
	put(r.j, r.s.jobs, job.ID, c)
	job.LockedUntil = nil
	return nil
}

// lock guarda una copia de j bloqueada hasta until y devuelve otra copia. Con s.mu tomado.
func (r *SubmissionJobRepo) lock(j *entity.SubmissionJob, until time.Time) *entity.SubmissionJob {
	c := cloneJob(j)
	c.LockedUntil = &until
	put(r.j, r.s.jobs, c.ID, c)
	return cloneJob(c)
}

// leasable replica el filtro de estado, intentos y lease de PostgreSQL.
func leasable(j *entity.SubmissionJob, now time.Time) bool {
	if j.Attempts >= j.MaxAttempts {
		return false
	}
	switch j.Status {
	case entity.JobStatusPending, entity.JobStatusRetry, entity.JobStatusError:
	default:
		return false
	}
	return j.LockedUntil == nil || !j.LockedUntil.After(now)
}

func due(j *entity.SubmissionJob, now time.Time) bool {
	return j.NextAttemptAt == nil || !j.NextAttemptAt.After(now)
}

func sameLease(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
