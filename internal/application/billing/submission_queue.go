package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

// SubmissionQueue encola la remisión de un registro cuando el tenant la tiene activa.
type SubmissionQueue struct {
	maxAttempts int
	now         func() time.Time
}

// NewSubmissionQueue crea la cola; maxAttempts <= 0 usa entity.DefaultMaxAttempts.
func NewSubmissionQueue(maxAttempts int) *SubmissionQueue {
	if maxAttempts <= 0 {
		maxAttempts = entity.DefaultMaxAttempts
	}
	return &SubmissionQueue{maxAttempts: maxAttempts, now: time.Now}
}

// CreateJob devuelve nil, nil si el modo no es enabled; si no, inserta un trabajo
// pending listo para reclamarse. Debe llamarse dentro de la transacción de emisión.
func (q *SubmissionQueue) CreateJob(ctx context.Context, repo repository.SubmissionJobRepository, entry *entity.LedgerEntry, mode string) (*entity.SubmissionJob, error) {
	if mode != entity.TransmissionEnabled {
		return nil, nil
	}
	now := q.now().UTC()
	job := &entity.SubmissionJob{
		ID:            uuid.New().String(),
		EntryID:       entry.ID,
		TenantID:      entry.TenantID,
		Status:        entity.JobStatusPending,
		Attempts:      0,
		MaxAttempts:   q.maxAttempts,
		NextAttemptAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
