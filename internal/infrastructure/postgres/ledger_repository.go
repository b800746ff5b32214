package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo cadena de registros sobre PostgreSQL. Sólo inserta y lee.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

const ledgerColumns = `id, tenant_id, invoice_id, sequence, event_type, hash, prev_hash, prev_entry_id, payload, recorded_by, recorded_at`

// chainLockKey prefijo del advisory lock de la cadena del tenant.
const chainLockKey = "verifactu-chain:"

// LockTenantChain toma un advisory lock transaccional por tenant: los appends de un mismo
// tenant se serializan aunque usen series distintas, y los de tenants distintos no se
// bloquean entre sí. Se libera en el commit o rollback.
func (r *LedgerRepo) LockTenantChain(ctx context.Context, tenantID string) error {
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, chainLockKey+tenantID)
	if err != nil {
		return conflictOr(err, "lock tenant chain")
	}
	return nil
}

func (r *LedgerRepo) GetLatest(ctx context.Context, tenantID string) (*entity.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE tenant_id = $1
		ORDER BY sequence DESC
		LIMIT 1`
	e, err := scanEntry(r.q.QueryRow(ctx, query, tenantID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest ledger entry: %w", err)
	}
	return e, nil
}

// Append inserta el registro. Los índices únicos (tenant_id, sequence), prev_entry_id y
// el primer registro por tenant convierten una bifurcación en domain.ErrConflict.
func (r *LedgerRepo) Append(ctx context.Context, e *entity.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.TenantID, e.InvoiceID, e.Sequence, e.EventType, e.Hash,
		e.PrevHash, e.PrevEntryID, []byte(e.Payload), e.RecordedBy, e.RecordedAt,
	)
	if err != nil {
		return conflictOr(err, "insert ledger entry")
	}
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id string) (*entity.LedgerEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByTenant devuelve la cadena en orden (recorded_at, sequence), el orden que usa
// la verificación.
func (r *LedgerRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE tenant_id = $1
		ORDER BY recorded_at, sequence`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// scanEntry lee payload como bytes: la columna es json (no jsonb) y conserva
// exactamente el texto canónico sobre el que se calculó la huella.
func scanEntry(row pgxScanner) (*entity.LedgerEntry, error) {
	var e entity.LedgerEntry
	var payload []byte
	err := row.Scan(
		&e.ID, &e.TenantID, &e.InvoiceID, &e.Sequence, &e.EventType, &e.Hash,
		&e.PrevHash, &e.PrevEntryID, &payload, &e.RecordedBy, &e.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
