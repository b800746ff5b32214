package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
)

// ChainVerifier expone la verificación y exportación de la cadena de un tenant.
// Sólo lee: las discrepancias se informan, nunca se corrigen.
type ChainVerifier struct {
	ledger repository.LedgerRepository
	log    *logger.Logger
}

// NewChainVerifier construye el verificador.
func NewChainVerifier(ledger repository.LedgerRepository, log *logger.Logger) *ChainVerifier {
	return &ChainVerifier{ledger: ledger, log: log.Component("chain_verifier")}
}

// Verify recalcula la cadena completa del tenant.
func (v *ChainVerifier) Verify(ctx context.Context, tenantID string) (*verifactu.VerificationResult, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	entries, err := v.ledger.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listar cadena: %w", err)
	}
	res := verifactu.VerifyChain(entries)
	if res.Valid {
		v.log.Info().Str("tenant_id", tenantID).Int("total_entries", res.TotalEntries).Msg("cadena verificada")
	} else {
		ev := v.log.Warn().Str("tenant_id", tenantID).Int("total_entries", res.TotalEntries).Int("errors", len(res.Errors))
		if len(res.Errors) > 0 {
			ev = ev.Str("first_entry_id", res.Errors[0].EntryID).Str("first_kind", res.Errors[0].Kind)
		}
		ev.Msg("cadena con discrepancias")
	}
	return res, nil
}

// ExportChain devuelve los registros del tenant en orden, tal como están almacenados.
func (v *ChainVerifier) ExportChain(ctx context.Context, tenantID string) ([]*entity.LedgerEntry, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	entries, err := v.ledger.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listar cadena: %w", err)
	}
	return entries, nil
}
