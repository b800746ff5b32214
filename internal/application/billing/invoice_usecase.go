package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
	"github.com/shopspring/decimal"
)

// IssueResult resultado de un evento de ciclo de vida: la factura, su registro en la
// cadena y el trabajo de remisión (nil si el tenant no remite).
type IssueResult struct {
	Invoice *entity.Invoice
	Entry   *entity.LedgerEntry
	Job     *entity.SubmissionJob
}

// Response convierte el resultado al DTO de la API.
func (r *IssueResult) Response() *dto.LedgerEventResponse {
	resp := &dto.LedgerEventResponse{
		Invoice:       ToInvoiceResponse(r.Invoice),
		LedgerEntryID: r.Entry.ID,
		Hash:          r.Entry.Hash,
	}
	if r.Job != nil {
		resp.SubmissionJobID = r.Job.ID
	}
	return resp
}

// InvoiceUseCase emite, anula y rectifica facturas. Cada evento es una única
// transacción: número, estado, registro encadenado y trabajo de remisión.
type InvoiceUseCase struct {
	txRunner     BillingTxRunner
	invoiceRepo  repository.InvoiceRepository
	customerRepo repository.CustomerRepository
	counter      *SeriesCounter
	builder      *ChainBuilder
	queue        *SubmissionQueue
	log          *logger.Logger
	now          func() time.Time
}

// NewInvoiceUseCase construye el caso de uso. Los repositorios sueltos sólo se usan
// para lecturas y borradores; los eventos usan los de la transacción.
func NewInvoiceUseCase(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	counter *SeriesCounter,
	builder *ChainBuilder,
	queue *SubmissionQueue,
	log *logger.Logger,
) *InvoiceUseCase {
	return &InvoiceUseCase{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		counter:      counter,
		builder:      builder,
		queue:        queue,
		log:          log.Component("invoice_usecase"),
		now:          time.Now,
	}
}

var knownInvoiceTypes = map[string]bool{
	entity.InvoiceTypeStandard:             true,
	entity.InvoiceTypeSimplified:           true,
	entity.InvoiceTypeSubstitute:           true,
	entity.InvoiceTypeRectifying:           true,
	entity.InvoiceTypeRectifyingSimplified: true,
}

// CreateDraft crea un borrador con sus líneas y totales. El cliente es obligatorio salvo
// en facturas simplificadas.
func (uc *InvoiceUseCase) CreateDraft(ctx context.Context, tenantID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	invType := strings.TrimSpace(in.Type)
	if invType == "" {
		invType = entity.InvoiceTypeStandard
	}
	if !knownInvoiceTypes[invType] {
		return nil, domain.ErrInvalidInput
	}
	simplified := invType == entity.InvoiceTypeSimplified || invType == entity.InvoiceTypeRectifyingSimplified
	if in.CustomerID == "" && !simplified {
		return nil, domain.ErrInvalidInput
	}
	if in.CustomerID != "" {
		customer, err := uc.customerRepo.GetByID(ctx, in.CustomerID)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return nil, domain.ErrNotFound
		}
		if customer.TenantID != tenantID {
			return nil, domain.ErrForbidden
		}
	}

	now := uc.now()
	date := now
	if in.Date != "" {
		d, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, domain.ErrInvalidInput
		}
		date = d
	}

	inv := &entity.Invoice{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		CustomerID: in.CustomerID,
		SeriesID:   in.SeriesID,
		Type:       invType,
		Status:     entity.InvoiceStatusDraft,
		Date:       date,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Description) == "" ||
			!item.Quantity.GreaterThan(decimal.Zero) ||
			item.UnitPrice.LessThan(decimal.Zero) ||
			item.TaxRate.LessThan(decimal.Zero) {
			return nil, domain.ErrInvalidInput
		}
		rate := normalizeTaxRate(item.TaxRate)
		subtotal := item.Quantity.Mul(item.UnitPrice).Round(2)
		tax := subtotal.Mul(rate).Round(2)
		inv.Lines = append(inv.Lines, &entity.InvoiceLine{
			ID:          uuid.New().String(),
			InvoiceID:   inv.ID,
			Position:    i + 1,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     rate,
			Subtotal:    subtotal,
			TaxAmount:   tax,
		})
		inv.Subtotal = inv.Subtotal.Add(subtotal)
		inv.TaxTotal = inv.TaxTotal.Add(tax)
	}
	inv.Total = inv.Subtotal.Add(inv.TaxTotal)

	if err := uc.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// normalizeTaxRate acepta porcentaje (21) o fracción (0.21).
func normalizeTaxRate(rate decimal.Decimal) decimal.Decimal {
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return rate.Div(decimal.NewFromInt(100))
	}
	return rate
}

// GetInvoice obtiene una factura del tenant con sus líneas.
func (uc *InvoiceUseCase) GetInvoice(ctx context.Context, tenantID, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return ToInvoiceResponse(inv), nil
}

// Issue emite un borrador: reserva número, congela la factura, añade el registro de
// alta a la cadena y encola la remisión si el tenant la tiene activa. Cualquier error
// deshace todo; un conflicto de concurrencia llega como domain.ErrConflict.
func (uc *InvoiceUseCase) Issue(ctx context.Context, tenantID, invoiceID, actor string) (*IssueResult, error) {
	var result *IssueResult
	err := uc.txRunner.RunBilling(ctx, func(r repository.Repos) error {
		inv, err := loadOwnedInvoice(ctx, r.Invoices, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsDraft() {
			return domain.ErrInvoiceNotDraft
		}
		tenant, err := loadTenant(ctx, r.Tenants, tenantID)
		if err != nil {
			return err
		}

		res, err := uc.counter.Reserve(ctx, r.Series, tenantID, inv.SeriesID)
		if err != nil {
			return err
		}

		now := uc.now()
		inv.SeriesID = res.SeriesID
		inv.Number = res.Number
		inv.FullNumber = res.FullNumber
		inv.Status = entity.InvoiceStatusIssued
		inv.IssuedAt = &now
		inv.IssuedBy = actor
		inv.UpdatedAt = now
		if err := r.Invoices.MarkIssued(ctx, inv); err != nil {
			return err
		}

		customer, err := loadCustomer(ctx, r.Customers, inv.CustomerID)
		if err != nil {
			return err
		}
		snap := verifactu.NewSnapshot(inv, tenant, customer, res.Code)
		result, err = uc.appendEvent(ctx, r, tenant, inv, snap, entity.EventCreation, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.logEvent(result, "factura emitida")
	return result, nil
}

// Void anula una factura emitida y deja constancia en la cadena.
func (uc *InvoiceUseCase) Void(ctx context.Context, tenantID, invoiceID, actor, reason string) (*IssueResult, error) {
	return uc.recordEvent(ctx, tenantID, invoiceID, actor, reason, entity.EventVoid, entity.InvoiceStatusVoided)
}

// Rectify marca una factura emitida como rectificada y añade el registro de rectificación.
func (uc *InvoiceUseCase) Rectify(ctx context.Context, tenantID, invoiceID, actor, reason string) (*IssueResult, error) {
	return uc.recordEvent(ctx, tenantID, invoiceID, actor, reason, entity.EventRectification, entity.InvoiceStatusRectified)
}

func (uc *InvoiceUseCase) recordEvent(ctx context.Context, tenantID, invoiceID, actor, reason, eventType, newStatus string) (*IssueResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrInvalidInput
	}
	var result *IssueResult
	err := uc.txRunner.RunBilling(ctx, func(r repository.Repos) error {
		inv, err := loadOwnedInvoice(ctx, r.Invoices, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != entity.InvoiceStatusIssued {
			return domain.ErrInvoiceNotIssued
		}
		tenant, err := loadTenant(ctx, r.Tenants, tenantID)
		if err != nil {
			return err
		}
		series, err := r.Series.GetByID(ctx, inv.SeriesID)
		if err != nil {
			return fmt.Errorf("serie de la factura: %w", err)
		}
		if series == nil {
			return domain.ErrSeriesNotFound
		}
		customer, err := loadCustomer(ctx, r.Customers, inv.CustomerID)
		if err != nil {
			return err
		}

		if err := r.Invoices.UpdateStatus(ctx, inv.ID, newStatus); err != nil {
			return err
		}
		inv.Status = newStatus

		snap := verifactu.NewSnapshot(inv, tenant, customer, series.Code)
		snap.Reason = reason
		result, err = uc.appendEvent(ctx, r, tenant, inv, snap, eventType, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.logEvent(result, "evento registrado")
	return result, nil
}

func (uc *InvoiceUseCase) appendEvent(ctx context.Context, r repository.Repos, tenant *entity.Tenant, inv *entity.Invoice, snap *verifactu.InvoiceSnapshot, eventType, actor string) (*IssueResult, error) {
	entry, err := uc.builder.Append(ctx, r.Ledger, snap, eventType, actor)
	if err != nil {
		return nil, err
	}
	job, err := uc.queue.CreateJob(ctx, r.Jobs, entry, tenant.TransmissionMode)
	if err != nil {
		return nil, err
	}
	return &IssueResult{Invoice: inv, Entry: entry, Job: job}, nil
}

func (uc *InvoiceUseCase) logEvent(res *IssueResult, msg string) {
	ev := uc.log.Info().
		Str("tenant_id", res.Invoice.TenantID).
		Str("invoice_id", res.Invoice.ID).
		Str("full_number", res.Invoice.FullNumber).
		Str("event_type", res.Entry.EventType).
		Str("entry_id", res.Entry.ID).
		Int64("sequence", res.Entry.Sequence)
	if res.Job != nil {
		ev = ev.Str("job_id", res.Job.ID)
	}
	ev.Msg(msg)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func loadOwnedInvoice(ctx context.Context, repo repository.InvoiceRepository, tenantID, invoiceID string) (*entity.Invoice, error) {
	inv, err := repo.LockByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("bloquear factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

func loadTenant(ctx context.Context, repo repository.TenantRepository, tenantID string) (*entity.Tenant, error) {
	tenant, err := repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: %w", err)
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}

// loadCustomer devuelve nil sin error si la factura no tiene destinatario.
func loadCustomer(ctx context.Context, repo repository.CustomerRepository, customerID string) (*entity.Customer, error) {
	if customerID == "" {
		return nil, nil
	}
	customer, err := repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cliente: %w", err)
	}
	return customer, nil
}
