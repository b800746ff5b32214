package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// SubmissionJobRepository define el puerto de persistencia de la cola de remisión.
type SubmissionJobRepository interface {
	Create(ctx context.Context, job *entity.SubmissionJob) error
	GetByID(ctx context.Context, id string) (*entity.SubmissionJob, error)

	// Claim reserva hasta limit trabajos reclamables (pending, retry, o error con
	// intentos disponibles) cuyo next_attempt_at ya pasó, del más antiguo al más
	// reciente, marcándolos como bloqueados durante lease. Con tenantID no vacío sólo
	// considera los trabajos de ese tenant.
	Claim(ctx context.Context, tenantID string, limit int, now time.Time, lease time.Duration) ([]*entity.SubmissionJob, error)

	// ClaimByID reserva un trabajo concreto con el mismo filtro que Claim salvo
	// next_attempt_at, que no se exige. Devuelve nil, nil si no existe, no es reclamable
	// o lo tiene reservado otro worker.
	ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*entity.SubmissionJob, error)

	// Update persiste estado, intentos, respuesta y marcas de tiempo, y libera el bloqueo.
	// Sólo escribe si el trabajo conserva el lease de job.LockedUntil (nil si no estaba
	// reservado); si otro worker lo reclamó entretanto devuelve domain.ErrConflict.
	Update(ctx context.Context, job *entity.SubmissionJob) error
}
