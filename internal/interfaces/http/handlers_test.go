package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/application/dto"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/memory"
	infravf "github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu/signer"
	apphttp "github.com/jhoicas/invorya-verifactu/internal/interfaces/http"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type apiFixture struct {
	app   *fiber.App
	repos repository.Repos
}

func newAPI(t *testing.T, mode string) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	seedTenant(t, repos, testTenantID, mode)

	system := verifactu.SystemInfo{Name: "Invorya", ID: "IV", Version: "1.0.0"}
	uc := billing.NewInvoiceUseCase(store, repos.Invoices, repos.Customers,
		billing.NewSeriesCounter(), billing.NewChainBuilder(system), billing.NewSubmissionQueue(3), log)
	worker := billing.NewSubmissionWorker(repos.Jobs, repos.Ledger, repos.Invoices, repos.Tenants,
		infravf.NewEncoder(), signer.NewPlaceholderSigner(), infravf.NewDevTransmitter(),
		billing.DefaultRetryPolicy(), billing.WorkerConfig{}, log)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		InvoiceUC:     uc,
		ChainVerifier: billing.NewChainVerifier(repos.Ledger, log),
		Worker:        worker,
		JWTSecret:     testJWTSecret,
	})
	return &apiFixture{app: app, repos: repos}
}

// seedTenant da de alta el tenant con una serie por defecto y el cliente "customer-<id>".
func seedTenant(t *testing.T, repos repository.Repos, tenantID, mode string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repos.Tenants.Create(ctx, &entity.Tenant{
		ID: tenantID, Name: "Ferretería Norte SL", TaxID: "B12345678",
		Status: "active", TransmissionMode: mode, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repos.Series.Create(ctx, &entity.Series{
		ID: "series-" + tenantID, TenantID: tenantID, Code: "2025", Prefix: "FRA",
		IsActive: true, IsDefault: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repos.Customers.Create(ctx, &entity.Customer{
		ID: "customer-" + tenantID, TenantID: tenantID, Name: "Cliente Uno SA", TaxID: "A87654321",
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (a *apiFixture) call(t *testing.T, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	return a.callAs(t, testTenantID, method, path, role, body)
}

func (a *apiFixture) callAs(t *testing.T, tenantID, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenFor(t, tenantID, role))
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (a *apiFixture) createDraft(t *testing.T) dto.InvoiceResponse {
	t.Helper()
	return a.createDraftAs(t, testTenantID)
}

func (a *apiFixture) createDraftAs(t *testing.T, tenantID string) dto.InvoiceResponse {
	t.Helper()
	resp, body := a.callAs(t, tenantID, http.MethodPost, "/api/invoices", apphttp.RoleFacturador, map[string]any{
		"customer_id": "customer-" + tenantID,
		"date":        "2025-03-14",
		"items": []map[string]any{
			{"description": "Tornillos", "quantity": "10", "unit_price": "1.50", "tax_rate": "21"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var inv dto.InvoiceResponse
	require.NoError(t, json.Unmarshal(body, &inv))
	return inv
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestAPI_EmitirVerificarYExportar(t *testing.T) {
	a := newAPI(t, entity.TransmissionEnabled)
	draft := a.createDraft(t)
	assert.Equal(t, entity.InvoiceStatusDraft, draft.Status)

	resp, body := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleFacturador, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var issued dto.LedgerEventResponse
	require.NoError(t, json.Unmarshal(body, &issued))
	assert.Equal(t, "FRA-2025-000001", issued.Invoice.FullNumber)
	assert.Len(t, issued.Hash, 64)
	assert.NotEmpty(t, issued.SubmissionJobID)

	resp, body = a.call(t, http.MethodGet, "/api/ledger/verify", apphttp.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var res verifactu.VerificationResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.TotalEntries)
	assert.Empty(t, res.Errors)

	resp, body = a.call(t, http.MethodGet, "/api/ledger/export", apphttp.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []dto.LedgerEntryResponse
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, issued.LedgerEntryID, entries[0].ID)
	assert.Nil(t, entries[0].PrevHash)

	resp, body = a.call(t, http.MethodPost, "/api/submissions/process", apphttp.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stats billing.BatchStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Successful)

	resp, body = a.call(t, http.MethodGet, "/api/submissions/"+issued.SubmissionJobID, apphttp.RoleFacturador, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var job dto.SubmissionJobResponse
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, entity.JobStatusSent, job.Status)
	assert.NotNil(t, job.SentAt)
}

func TestAPI_EmitirDosVecesEsPrecondicion(t *testing.T) {
	a := newAPI(t, entity.TransmissionDisabled)
	draft := a.createDraft(t)

	resp, _ := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleFacturador, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleFacturador, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "PRECONDITION_FAILED")
}

func TestAPI_AnularSinMotivo(t *testing.T) {
	a := newAPI(t, entity.TransmissionDisabled)
	draft := a.createDraft(t)
	resp, _ := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleFacturador, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/void", apphttp.RoleFacturador, map[string]string{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/void", apphttp.RoleFacturador, map[string]string{"reason": "duplicada"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var ev dto.LedgerEventResponse
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, entity.InvoiceStatusVoided, ev.Invoice.Status)
	assert.Empty(t, ev.SubmissionJobID, "modo disabled no encola remisión")
}

func TestAPI_FacturaInexistente(t *testing.T) {
	a := newAPI(t, entity.TransmissionDisabled)
	resp, body := a.call(t, http.MethodGet, "/api/invoices/no-existe", apphttp.RoleAuditor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "NOT_FOUND")
}

func TestAPI_AuditorNoEmite(t *testing.T) {
	a := newAPI(t, entity.TransmissionDisabled)
	draft := a.createDraft(t)
	resp, _ := a.call(t, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleAuditor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_ProcesarLimiteInvalido(t *testing.T) {
	a := newAPI(t, entity.TransmissionDisabled)
	resp, _ := a.call(t, http.MethodPost, "/api/submissions/process?limit=abc", apphttp.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ProcesarSoloTrabajosDelTenant(t *testing.T) {
	const otherTenantID = "00000000-0000-0000-0000-000000000099"
	a := newAPI(t, entity.TransmissionEnabled)
	seedTenant(t, a.repos, otherTenantID, entity.TransmissionEnabled)

	issue := func(tenantID string) dto.LedgerEventResponse {
		draft := a.createDraftAs(t, tenantID)
		resp, body := a.callAs(t, tenantID, http.MethodPost, "/api/invoices/"+draft.ID+"/issue", apphttp.RoleFacturador, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var ev dto.LedgerEventResponse
		require.NoError(t, json.Unmarshal(body, &ev))
		require.NotEmpty(t, ev.SubmissionJobID)
		return ev
	}
	mine := issue(testTenantID)
	theirs := issue(otherTenantID)

	resp, body := a.call(t, http.MethodPost, "/api/submissions/process", apphttp.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stats billing.BatchStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Processed)
	assert.NotContains(t, string(body), theirs.SubmissionJobID)

	resp, body = a.call(t, http.MethodGet, "/api/submissions/"+mine.SubmissionJobID, apphttp.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var job dto.SubmissionJobResponse
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, entity.JobStatusSent, job.Status)

	resp, body = a.callAs(t, otherTenantID, http.MethodGet, "/api/submissions/"+theirs.SubmissionJobID, apphttp.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, entity.JobStatusPending, job.Status, "la cola del otro tenant no se toca")
}
