package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	infravf "github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu/signer"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// WorkerConfig parámetros del worker de remisión.
type WorkerConfig struct {
	BatchSize   int           // trabajos por lote
	Interval    time.Duration // periodo entre lotes en Run
	Lease       time.Duration // tiempo que un trabajo reclamado queda reservado
	Concurrency int           // tenants procesados en paralelo
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// BatchStats resumen de un lote.
type BatchStats struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// SubmissionWorker reclama trabajos pendientes, genera el documento, lo firma, lo
// transmite y actualiza el estado con intentos y espera. El fallo de un trabajo nunca
// interrumpe el lote.
type SubmissionWorker struct {
	jobs        repository.SubmissionJobRepository
	ledger      repository.LedgerRepository
	invoices    repository.InvoiceRepository
	tenants     repository.TenantRepository
	encoder     *infravf.Encoder
	signer      signer.Signer
	transmitter infravf.Transmitter
	policy      RetryPolicy
	cfg         WorkerConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewSubmissionWorker construye el worker.
func NewSubmissionWorker(
	jobs repository.SubmissionJobRepository,
	ledger repository.LedgerRepository,
	invoices repository.InvoiceRepository,
	tenants repository.TenantRepository,
	encoder *infravf.Encoder,
	sig signer.Signer,
	transmitter infravf.Transmitter,
	policy RetryPolicy,
	cfg WorkerConfig,
	log *logger.Logger,
) *SubmissionWorker {
	return &SubmissionWorker{
		jobs:        jobs,
		ledger:      ledger,
		invoices:    invoices,
		tenants:     tenants,
		encoder:     encoder,
		signer:      sig,
		transmitter: transmitter,
		policy:      policy,
		cfg:         cfg.withDefaults(),
		log:         log.Component("submission_worker"),
		now:         time.Now,
	}
}

// ClaimBatch reserva hasta limit trabajos reclamables, del más antiguo al más reciente.
// Los trabajos en error con los intentos agotados no se reclaman nunca más. tenantID
// vacío abarca todos los tenants.
func (w *SubmissionWorker) ClaimBatch(ctx context.Context, tenantID string, limit int) ([]*entity.SubmissionJob, error) {
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}
	jobs, err := w.jobs.Claim(ctx, tenantID, limit, w.now().UTC(), w.cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("reclamar trabajos: %w", err)
	}
	return jobs, nil
}

// ProcessOne procesa un trabajo concreto sin esperar a su next_attempt_at. Antes toma
// su lease: si otro worker lo tiene reservado, o ya es terminal, devuelve ErrConflict
// sin transmitir. Devuelve el trabajo actualizado y, si el intento falló, el motivo.
func (w *SubmissionWorker) ProcessOne(ctx context.Context, jobID string) (*entity.SubmissionJob, error) {
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	if job.IsTerminal() || job.Exhausted() {
		return job, domain.ErrConflict
	}
	claimed, err := w.jobs.ClaimByID(ctx, jobID, w.now().UTC(), w.cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("reclamar trabajo: %w", err)
	}
	if claimed == nil {
		return job, domain.ErrConflict
	}
	err = w.process(ctx, claimed)
	return claimed, err
}

// GetJob devuelve el trabajo si pertenece al tenant.
func (w *SubmissionWorker) GetJob(ctx context.Context, tenantID, jobID string) (*entity.SubmissionJob, error) {
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	if job.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// ProcessBatch reclama un lote y lo procesa: los tenants en paralelo, cada tenant en
// orden de creación. tenantID vacío abarca todos los tenants. Si ctx se cancela, los
// trabajos que quedan no se intentan y recuperan su lease al caducar.
func (w *SubmissionWorker) ProcessBatch(ctx context.Context, tenantID string, limit int) (*BatchStats, error) {
	stats := &BatchStats{Errors: []string{}}
	jobs, err := w.ClaimBatch(ctx, tenantID, limit)
	if err != nil {
		return stats, err
	}
	if len(jobs) == 0 {
		return stats, nil
	}

	byTenant := lo.GroupBy(jobs, func(j *entity.SubmissionJob) string { return j.TenantID })
	tenantOrder := lo.Uniq(lo.Map(jobs, func(j *entity.SubmissionJob, _ int) string { return j.TenantID }))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(w.cfg.Concurrency)
	for _, tenantID := range tenantOrder {
		tenantJobs := byTenant[tenantID]
		p.Go(func() {
			for _, job := range tenantJobs {
				if ctx.Err() != nil {
					return
				}
				err := w.process(ctx, job)
				mu.Lock()
				stats.Processed++
				if err != nil {
					stats.Failed++
					stats.Errors = append(stats.Errors, fmt.Sprintf("job %s: %v", job.ID, err))
				} else {
					stats.Successful++
				}
				mu.Unlock()
			}
		})
	}
	p.Wait()

	w.log.Info().
		Int("processed", stats.Processed).
		Int("successful", stats.Successful).
		Int("failed", stats.Failed).
		Msg("lote de remisión procesado")
	return stats, nil
}

// Run procesa un lote cada Interval hasta que se cancela ctx.
func (w *SubmissionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	w.log.Info().Dur("interval", w.cfg.Interval).Int("batch_size", w.cfg.BatchSize).Msg("worker de remisión iniciado")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker de remisión detenido")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx, "", w.cfg.BatchSize); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("lote de remisión fallido")
			}
		}
	}
}

// process ejecuta un intento y persiste el resultado. Devuelve el motivo del fallo del
// intento (o el error al persistir) y nil si el registro quedó enviado.
func (w *SubmissionWorker) process(ctx context.Context, job *entity.SubmissionJob) error {
	tenant, err := w.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("tenant: %w", err), nil, false)
	}
	if !tenant.TransmissionIsEnabled() {
		return w.fail(ctx, job, domain.ErrTransmissionDisabled, nil, true)
	}

	doc, err := w.buildDocument(ctx, job)
	if err != nil {
		return w.fail(ctx, job, err, nil, false)
	}

	result, err := w.transmitter.Transmit(ctx, doc, tenant)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("transmisión: %w", err), nil, false)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("serializar respuesta: %w", err), nil, false)
	}
	if !result.Accepted {
		return w.fail(ctx, job, errors.New("rechazado: "+result.ErrorSummary()), raw, false)
	}

	now := w.now().UTC()
	job.Status = entity.JobStatusSent
	job.Response = raw
	job.ErrorMessage = ""
	job.SentAt = &now
	job.NextAttemptAt = nil
	job.UpdatedAt = now
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("guardar trabajo enviado: %w", err)
	}
	w.log.Info().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("entry_id", job.EntryID).
		Str("csv", result.CSV).
		Msg("registro remitido")
	return nil
}

// buildDocument carga registro, anterior y factura, genera el documento y lo firma.
func (w *SubmissionWorker) buildDocument(ctx context.Context, job *entity.SubmissionJob) ([]byte, error) {
	entry, err := w.ledger.GetByID(ctx, job.EntryID)
	if err != nil {
		return nil, fmt.Errorf("registro: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("registro %s no encontrado", job.EntryID)
	}
	inv, err := w.invoices.GetByID(ctx, entry.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("factura: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("factura %s no encontrada", entry.InvoiceID)
	}
	var prev *entity.LedgerEntry
	if entry.PrevEntryID != nil {
		if prev, err = w.ledger.GetByID(ctx, *entry.PrevEntryID); err != nil {
			return nil, fmt.Errorf("registro anterior: %w", err)
		}
	}
	doc, err := w.encoder.EncodeEntry(entry, prev)
	if err != nil {
		return nil, err
	}
	signed, err := w.signer.Sign(doc)
	if err != nil {
		return nil, fmt.Errorf("firmar documento: %w", err)
	}
	return signed, nil
}

// fail cuenta el intento fallido: retry mientras queden intentos, error al agotarlos.
// forceError marca error aunque queden intentos; el trabajo sigue siendo reclamable
// tras la espera hasta agotarlos. Con ctx cancelado el intento no cuenta: el trabajo
// queda reservado hasta que caduque su lease.
func (w *SubmissionWorker) fail(ctx context.Context, job *entity.SubmissionJob, cause error, response json.RawMessage, forceError bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reason := cause.Error()
	now := w.now().UTC()
	job.Attempts++
	job.ErrorMessage = reason
	if response != nil {
		job.Response = response
	}
	job.UpdatedAt = now
	switch {
	case job.Exhausted():
		job.Status = entity.JobStatusError
		job.NextAttemptAt = nil
	case forceError:
		job.Status = entity.JobStatusError
		next := now.Add(w.policy.Delay(job.Attempts))
		job.NextAttemptAt = &next
	default:
		job.Status = entity.JobStatusRetry
		next := now.Add(w.policy.Delay(job.Attempts))
		job.NextAttemptAt = &next
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("guardar intento fallido (%s): %w", reason, err)
	}
	w.log.Warn().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("entry_id", job.EntryID).
		Int("attempts", job.Attempts).
		Str("status", job.Status).
		Str("reason", reason).
		Msg("remisión fallida")
	return cause
}
