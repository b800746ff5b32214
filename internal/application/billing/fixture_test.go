package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type fixture struct {
	store    *memory.Store
	repos    repository.Repos
	uc       *billing.InvoiceUseCase
	verifier *billing.ChainVerifier
	log      *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	system := verifactu.SystemInfo{
		Name:          "Invorya",
		ID:            "01",
		Version:       "1.0.0",
		ProducerTaxID: "B00000000",
		ProducerName:  "Invorya SL",
	}
	uc := billing.NewInvoiceUseCase(
		store,
		repos.Invoices,
		repos.Customers,
		billing.NewSeriesCounter(),
		billing.NewChainBuilder(system),
		billing.NewSubmissionQueue(entity.DefaultMaxAttempts),
		log,
	)
	return &fixture{
		store:    store,
		repos:    repos,
		uc:       uc,
		verifier: billing.NewChainVerifier(repos.Ledger, log),
		log:      log,
	}
}

func (f *fixture) addTenant(t *testing.T, mode string) *entity.Tenant {
	t.Helper()
	now := time.Now()
	tenant := &entity.Tenant{
		ID:               uuid.NewString(),
		Name:             "Ferretería Norte SL",
		TaxID:            "B12345678",
		Status:           "active",
		TransmissionMode: mode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, f.repos.Tenants.Create(context.Background(), tenant))
	return tenant
}

func (f *fixture) addSeries(t *testing.T, tenantID, prefix, code string, active, isDefault bool) *entity.Series {
	t.Helper()
	now := time.Now()
	series := &entity.Series{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Code:      code,
		Prefix:    prefix,
		IsActive:  active,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.repos.Series.Create(context.Background(), series))
	return series
}

func (f *fixture) addCustomer(t *testing.T, tenantID string) *entity.Customer {
	t.Helper()
	now := time.Now()
	c := &entity.Customer{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      "Cliente Uno SA",
		TaxID:     "A87654321",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.repos.Customers.Create(context.Background(), c))
	return c
}

func (f *fixture) draft(t *testing.T, tenantID, customerID, seriesID string) *dto.InvoiceResponse {
	t.Helper()
	resp, err := f.uc.CreateDraft(context.Background(), tenantID, dto.CreateInvoiceRequest{
		CustomerID: customerID,
		SeriesID:   seriesID,
		Date:       "2025-03-14",
		Items: []dto.InvoiceItemRequest{
			{Description: "Tornillos", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("1.50"), TaxRate: decimal.NewFromInt(21)},
			{Description: "Libro", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("20.00"), TaxRate: decimal.NewFromInt(4)},
		},
	})
	require.NoError(t, err)
	return resp
}

// issued crea tenant, serie y cliente y emite una factura.
func (f *fixture) issued(t *testing.T, mode string) (*entity.Tenant, *billing.IssueResult) {
	t.Helper()
	tenant := f.addTenant(t, mode)
	series := f.addSeries(t, tenant.ID, "FRA", "2025", true, true)
	customer := f.addCustomer(t, tenant.ID)
	inv := f.draft(t, tenant.ID, customer.ID, series.ID)
	res, err := f.uc.Issue(context.Background(), tenant.ID, inv.ID, "user-1")
	require.NoError(t, err)
	return tenant, res
}
