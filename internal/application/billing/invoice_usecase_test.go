package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDraft_CalculaTotales(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionDisabled)
	customer := f.addCustomer(t, tenant.ID)

	inv := f.draft(t, tenant.ID, customer.ID, "")

	assert.Equal(t, entity.InvoiceStatusDraft, inv.Status)
	assert.Zero(t, inv.Number)
	assert.Empty(t, inv.FullNumber)
	assert.True(t, decimal.RequireFromString("35.00").Equal(inv.Subtotal), inv.Subtotal.String())
	// 15.00 * 0.21 + 20.00 * 0.04
	assert.True(t, decimal.RequireFromString("3.95").Equal(inv.TaxTotal), inv.TaxTotal.String())
	assert.True(t, decimal.RequireFromString("38.95").Equal(inv.Total), inv.Total.String())
	require.Len(t, inv.Lines, 2)
	assert.True(t, decimal.RequireFromString("0.21").Equal(inv.Lines[0].TaxRate))
}

func TestCreateDraft_ClienteObligatorioSalvoSimplificada(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionDisabled)
	items := []dto.InvoiceItemRequest{{Description: "Café", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(2), TaxRate: decimal.NewFromInt(10)}}

	_, err := f.uc.CreateDraft(context.Background(), tenant.ID, dto.CreateInvoiceRequest{Items: items})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	inv, err := f.uc.CreateDraft(context.Background(), tenant.ID, dto.CreateInvoiceRequest{Type: entity.InvoiceTypeSimplified, Items: items})
	require.NoError(t, err)
	assert.Empty(t, inv.CustomerID)
}

func TestCreateDraft_EntradaInvalida(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionDisabled)
	customer := f.addCustomer(t, tenant.ID)

	cases := map[string]dto.CreateInvoiceRequest{
		"sin líneas":        {CustomerID: customer.ID},
		"tipo desconocido":  {CustomerID: customer.ID, Type: "proforma", Items: []dto.InvoiceItemRequest{{Description: "x", Quantity: decimal.NewFromInt(1)}}},
		"cantidad cero":     {CustomerID: customer.ID, Items: []dto.InvoiceItemRequest{{Description: "x", Quantity: decimal.Zero}}},
		"descripción vacía": {CustomerID: customer.ID, Items: []dto.InvoiceItemRequest{{Description: "  ", Quantity: decimal.NewFromInt(1)}}},
		"fecha ilegible":    {CustomerID: customer.ID, Date: "14/03/2025", Items: []dto.InvoiceItemRequest{{Description: "x", Quantity: decimal.NewFromInt(1)}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.CreateDraft(context.Background(), tenant.ID, req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCreateDraft_ClienteDeOtroTenant(t *testing.T) {
	f := newFixture(t)
	a := f.addTenant(t, entity.TransmissionDisabled)
	b := f.addTenant(t, entity.TransmissionDisabled)
	foreign := f.addCustomer(t, b.ID)

	_, err := f.uc.CreateDraft(context.Background(), a.ID, dto.CreateInvoiceRequest{
		CustomerID: foreign.ID,
		Items:      []dto.InvoiceItemRequest{{Description: "x", Quantity: decimal.NewFromInt(1)}},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestIssue_NumeroCompletoYPrimerRegistro(t *testing.T) {
	f := newFixture(t)
	_, res := f.issued(t, entity.TransmissionDisabled)

	assert.Equal(t, int64(1), res.Invoice.Number)
	assert.Equal(t, "FRA-2025-000001", res.Invoice.FullNumber)
	assert.Equal(t, entity.InvoiceStatusIssued, res.Invoice.Status)
	assert.NotNil(t, res.Invoice.IssuedAt)

	require.NotNil(t, res.Entry)
	assert.True(t, res.Entry.IsFirst())
	assert.Nil(t, res.Entry.PrevEntryID)
	assert.Equal(t, int64(1), res.Entry.Sequence)
	assert.Equal(t, entity.EventCreation, res.Entry.EventType)
	assert.Len(t, res.Entry.Hash, 64)

	want, err := verifactu.ComputeHash(res.Entry.Payload, nil)
	require.NoError(t, err)
	assert.Equal(t, want, res.Entry.Hash)

	assert.Nil(t, res.Job, "modo disabled no encola remisión")
}

func TestIssue_SerieSinPrefijo(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionDisabled)
	series := f.addSeries(t, tenant.ID, "", "A", true, false)
	customer := f.addCustomer(t, tenant.ID)

	var last string
	for i := 0; i < 3; i++ {
		inv := f.draft(t, tenant.ID, customer.ID, series.ID)
		res, err := f.uc.Issue(context.Background(), tenant.ID, inv.ID, "user-1")
		require.NoError(t, err)
		last = res.Invoice.FullNumber
	}
	assert.Equal(t, "A-000003", last)
}

func TestIssue_EncadenaConElAnterior(t *testing.T) {
	f := newFixture(t)
	tenant, first := f.issued(t, entity.TransmissionDisabled)
	customer := f.addCustomer(t, tenant.ID)

	inv := f.draft(t, tenant.ID, customer.ID, "")
	second, err := f.uc.Issue(context.Background(), tenant.ID, inv.ID, "user-2")
	require.NoError(t, err)

	assert.Equal(t, "FRA-2025-000002", second.Invoice.FullNumber)
	require.NotNil(t, second.Entry.PrevHash)
	assert.Equal(t, first.Entry.Hash, *second.Entry.PrevHash)
	assert.Equal(t, first.Entry.ID, *second.Entry.PrevEntryID)
	assert.Equal(t, int64(2), second.Entry.Sequence)
	assert.False(t, second.Entry.RecordedAt.Before(first.Entry.RecordedAt))
}

func TestIssue_ConcurrenteNumerosConsecutivosSinHuecos(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionEnabled)
	series := f.addSeries(t, tenant.ID, "FRA", "2025", true, true)
	customer := f.addCustomer(t, tenant.ID)

	const n = 25
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.draft(t, tenant.ID, customer.ID, series.ID).ID
	}

	var wg sync.WaitGroup
	numbers := make([]int64, n)
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.uc.Issue(context.Background(), tenant.ID, ids[i], "user-1")
			errs[i] = err
			if err == nil {
				numbers[i] = res.Invoice.Number
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(numbers, func(a, b int) bool { return numbers[a] < numbers[b] })
	for i, num := range numbers {
		assert.Equal(t, int64(i+1), num)
	}

	res, err := f.verifier.Verify(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid, "%v", res.Errors)
	assert.Equal(t, n, res.TotalEntries)

	entries, err := f.verifier.ExportChain(context.Background(), tenant.ID)
	require.NoError(t, err)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
	}

	jobs, err := f.repos.Jobs.Claim(context.Background(), "", 100, time.Now().Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Len(t, jobs, n, "un trabajo por registro")
}

func TestIssue_CadenasIndependientesPorTenant(t *testing.T) {
	f := newFixture(t)
	a, resA := f.issued(t, entity.TransmissionDisabled)
	b, resB := f.issued(t, entity.TransmissionDisabled)

	assert.True(t, resA.Entry.IsFirst())
	assert.True(t, resB.Entry.IsFirst())
	assert.Equal(t, "FRA-2025-000001", resB.Invoice.FullNumber)

	for _, id := range []string{a.ID, b.ID} {
		res, err := f.verifier.Verify(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.TotalEntries)
	}
}

func TestIssue_PrecondicionesNoEscribenNada(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(t, entity.TransmissionEnabled)
	other := f.addTenant(t, entity.TransmissionEnabled)
	inactive := f.addSeries(t, tenant.ID, "FRA", "2024", false, false)
	foreign := f.addSeries(t, other.ID, "FRB", "2025", true, true)
	customer := f.addCustomer(t, tenant.ID)

	cases := []struct {
		name     string
		seriesID string
		want     error
	}{
		{"serie inactiva", inactive.ID, domain.ErrSeriesInactive},
		{"serie de otro tenant", foreign.ID, domain.ErrSeriesTenantMismatch},
		{"serie inexistente", "no-existe", domain.ErrSeriesNotFound},
		{"sin serie por defecto", "", domain.ErrSeriesNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := f.draft(t, tenant.ID, customer.ID, tc.seriesID)
			_, err := f.uc.Issue(context.Background(), tenant.ID, inv.ID, "user-1")
			require.ErrorIs(t, err, tc.want)
			assert.True(t, domain.IsPrecondition(err))

			got, err := f.uc.GetInvoice(context.Background(), tenant.ID, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, entity.InvoiceStatusDraft, got.Status)
			assert.Zero(t, got.Number)
		})
	}

	entries, err := f.repos.Ledger.ListByTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	s, err := f.repos.Series.GetByID(context.Background(), inactive.ID)
	require.NoError(t, err)
	assert.Zero(t, s.CurrentNumber)
}

func TestIssue_YaEmitidaNoSeReemite(t *testing.T) {
	f := newFixture(t)
	tenant, res := f.issued(t, entity.TransmissionDisabled)

	_, err := f.uc.Issue(context.Background(), tenant.ID, res.Invoice.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)

	entries, err := f.repos.Ledger.ListByTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIssue_FacturaDeOtroTenant(t *testing.T) {
	f := newFixture(t)
	_, res := f.issued(t, entity.TransmissionDisabled)
	intruder := f.addTenant(t, entity.TransmissionDisabled)

	_, err := f.uc.Issue(context.Background(), intruder.ID, res.Invoice.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.GetInvoice(context.Background(), intruder.ID, res.Invoice.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.Issue(context.Background(), intruder.ID, "no-existe", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssue_ModoEnabledEncolaTrabajoPendiente(t *testing.T) {
	f := newFixture(t)
	_, res := f.issued(t, entity.TransmissionEnabled)

	require.NotNil(t, res.Job)
	assert.Equal(t, entity.JobStatusPending, res.Job.Status)
	assert.Equal(t, res.Entry.ID, res.Job.EntryID)
	assert.Zero(t, res.Job.Attempts)
	assert.Equal(t, entity.DefaultMaxAttempts, res.Job.MaxAttempts)

	resp := res.Response()
	assert.Equal(t, res.Job.ID, resp.SubmissionJobID)
	assert.Equal(t, res.Entry.Hash, resp.Hash)
}

func TestVoid_AnulaYEncadena(t *testing.T) {
	f := newFixture(t)
	tenant, issued := f.issued(t, entity.TransmissionDisabled)

	res, err := f.uc.Void(context.Background(), tenant.ID, issued.Invoice.ID, "user-2", "Error en el importe")
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusVoided, res.Invoice.Status)
	assert.Equal(t, entity.EventVoid, res.Entry.EventType)
	assert.Equal(t, issued.Entry.Hash, *res.Entry.PrevHash)

	payload, err := verifactu.DecodePayload(res.Entry.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Error en el importe", payload.Reason)
	assert.Equal(t, "FRA-2025-000001", payload.Invoice.FullNumber)

	_, err = f.uc.Void(context.Background(), tenant.ID, issued.Invoice.ID, "user-2", "otra vez")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotIssued)
}

func TestRectify_RequiereMotivoYFacturaEmitida(t *testing.T) {
	f := newFixture(t)
	tenant, issued := f.issued(t, entity.TransmissionDisabled)

	_, err := f.uc.Rectify(context.Background(), tenant.ID, issued.Invoice.ID, "user-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	customer := f.addCustomer(t, tenant.ID)
	draft := f.draft(t, tenant.ID, customer.ID, "")
	_, err = f.uc.Rectify(context.Background(), tenant.ID, draft.ID, "user-1", "descuento")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotIssued)

	res, err := f.uc.Rectify(context.Background(), tenant.ID, issued.Invoice.ID, "user-1", "descuento")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusRectified, res.Invoice.Status)
	assert.Equal(t, entity.EventRectification, res.Entry.EventType)
	assert.Equal(t, int64(2), res.Entry.Sequence)
}

func TestVerify_DetectaManipulacion(t *testing.T) {
	f := newFixture(t)
	tenant, first := f.issued(t, entity.TransmissionDisabled)
	customer := f.addCustomer(t, tenant.ID)
	for i := 0; i < 2; i++ {
		inv := f.draft(t, tenant.ID, customer.ID, "")
		_, err := f.uc.Issue(context.Background(), tenant.ID, inv.ID, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
	}

	require.NoError(t, f.store.TamperEntry(first.Entry.ID, func(e *entity.LedgerEntry) {
		e.Payload = []byte(`{"amounts":{"total":"0.01"}}`)
	}))

	res, err := f.verifier.Verify(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 3, res.TotalEntries)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, first.Entry.ID, res.Errors[0].EntryID)
	assert.Equal(t, verifactu.ErrKindHashMismatch, res.Errors[0].Kind)
}

func TestVerify_TenantVacio(t *testing.T) {
	f := newFixture(t)
	_, err := f.verifier.Verify(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
