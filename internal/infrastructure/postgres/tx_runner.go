package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

var _ billing.BillingTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// NewRepos devuelve los repositorios atados a q (pool o tx).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Tenants:   NewTenantRepository(q),
		Customers: NewCustomerRepository(q),
		Series:    NewSeriesRepository(q),
		Invoices:  NewInvoiceRepository(q),
		Ledger:    NewLedgerRepository(q),
		Jobs:      NewSubmissionJobRepository(q),
	}
}

// RunBilling inicia una transacción READ COMMITTED, ejecuta fn con los repositorios
// atados a la tx y hace Commit o Rollback. Los bloqueos de fila de la serie y el
// advisory lock de la cadena se liberan al terminar la transacción. Un conflicto en el
// commit llega como domain.ErrConflict.
func (r *TxRunner) RunBilling(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictOr(err, "commit transaction")
	}
	return nil
}
