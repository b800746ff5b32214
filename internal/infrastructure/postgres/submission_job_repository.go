package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

var _ repository.SubmissionJobRepository = (*SubmissionJobRepo)(nil)

// SubmissionJobRepo cola de remisión sobre PostgreSQL.
type SubmissionJobRepo struct {
	q Querier
}

// NewSubmissionJobRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSubmissionJobRepository(q Querier) *SubmissionJobRepo {
	return &SubmissionJobRepo{q: q}
}

const jobColumns = `id, entry_id, tenant_id, status, attempts, max_attempts, response, error_message,
	next_attempt_at, locked_until, sent_at, created_at, updated_at`

func (r *SubmissionJobRepo) Create(ctx context.Context, j *entity.SubmissionJob) error {
	query := `
		INSERT INTO submission_jobs (id, entry_id, tenant_id, status, attempts, max_attempts,
		                             next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		j.ID, j.EntryID, j.TenantID, j.Status, j.Attempts, j.MaxAttempts,
		j.NextAttemptAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert submission_job: %w", err)
	}
	return nil
}

func (r *SubmissionJobRepo) GetByID(ctx context.Context, id string) (*entity.SubmissionJob, error) {
	j, err := scanJob(r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM submission_jobs WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission_job: %w", err)
	}
	return j, nil
}

// Claim reserva trabajos con FOR UPDATE SKIP LOCKED y un lease en locked_until: varios
// workers pueden drenar la cola a la vez sin procesar dos veces el mismo trabajo. Los
// trabajos en error sólo se reclaman mientras queden intentos.
func (r *SubmissionJobRepo) Claim(ctx context.Context, tenantID string, limit int, now time.Time, lease time.Duration) ([]*entity.SubmissionJob, error) {
	query := `
		WITH claimed AS (
			UPDATE submission_jobs j
			SET locked_until = $3
			FROM (
				SELECT id
				FROM submission_jobs
				WHERE ` + leasablePredicate + `
				  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
				  AND ($4::text = '' OR tenant_id = $4)
				ORDER BY position
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			) c
			WHERE j.id = c.id
			RETURNING j.position, ` + prefixed("j.", jobColumns) + `
		)
		SELECT ` + jobColumns + ` FROM claimed ORDER BY position`
	rows, err := r.q.Query(ctx, query, limit, now, leaseUntil(now, lease), tenantID)
	if err != nil {
		return nil, conflictOr(err, "claim submission_jobs")
	}
	defer rows.Close()
	list := make([]*entity.SubmissionJob, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission_job: %w", err)
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// ClaimByID toma el lease de un trabajo concreto. El UPDATE reevalúa el filtro sobre la
// fila bloqueada, así que dos llamadas simultáneas no pueden ganar ambas.
func (r *SubmissionJobRepo) ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*entity.SubmissionJob, error) {
	query := `
		UPDATE submission_jobs
		SET locked_until = $3
		WHERE id = $1 AND ` + leasablePredicate + `
		RETURNING ` + jobColumns
	j, err := scanJob(r.q.QueryRow(ctx, query, id, now, leaseUntil(now, lease)))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, conflictOr(err, "claim submission_job")
	}
	return j, nil
}

// Update persiste el resultado del intento y libera el lease, siempre que el trabajo
// siga reservado con el lease que trae j.
func (r *SubmissionJobRepo) Update(ctx context.Context, j *entity.SubmissionJob) error {
	query := `
		UPDATE submission_jobs
		SET status          = $2,
		    attempts        = $3,
		    response        = COALESCE($4, response),
		    error_message   = $5,
		    next_attempt_at = $6,
		    sent_at         = $7,
		    locked_until    = NULL,
		    updated_at      = $8
		WHERE id = $1 AND locked_until IS NOT DISTINCT FROM $9`
	var response []byte
	if len(j.Response) > 0 {
		response = j.Response
	}
	cmd, err := r.q.Exec(ctx, query,
		j.ID, j.Status, j.Attempts, response, nullIfEmpty(j.ErrorMessage),
		j.NextAttemptAt, j.SentAt, j.UpdatedAt, j.LockedUntil,
	)
	if err != nil {
		return fmt.Errorf("update submission_job: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submission_jobs WHERE id = $1)`, j.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update submission_job: %w", err)
		}
		if exists {
			return domain.ErrConflict
		}
		return domain.ErrNotFound
	}
	j.LockedUntil = nil
	return nil
}

// Filtro común de Claim y ClaimByID; $2 es el instante actual.
const leasablePredicate = `status IN ('pending', 'retry', 'error')
				  AND attempts < max_attempts
				  AND (locked_until IS NULL OR locked_until <= $2)`

// leaseUntil recorta a microsegundos, la precisión de timestamptz, para que el lease
// leído de vuelta sea idéntico al que compara Update.
func leaseUntil(now time.Time, lease time.Duration) time.Time {
	return now.Add(lease).Truncate(time.Microsecond)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanJob(row pgxScanner) (*entity.SubmissionJob, error) {
	var j entity.SubmissionJob
	var response []byte
	var errMsg *string
	err := row.Scan(
		&j.ID, &j.EntryID, &j.TenantID, &j.Status, &j.Attempts, &j.MaxAttempts,
		&response, &errMsg, &j.NextAttemptAt, &j.LockedUntil, &j.SentAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Response = response
	j.ErrorMessage = derefStr(errMsg)
	return &j, nil
}
