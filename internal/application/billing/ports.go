package billing

import (
	"context"

	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

// BillingTxRunner ejecuta fn dentro de una transacción: numeración, cambio de estado de
// la factura, registro encadenado y trabajo de remisión confirman o se deshacen juntos.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(repos repository.Repos) error) error
}
