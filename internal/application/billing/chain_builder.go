package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
)

// ChainBuilder añade registros a la cadena del tenant.
type ChainBuilder struct {
	system verifactu.SystemInfo
	now    func() time.Time
}

// NewChainBuilder crea el constructor con la identidad del sistema informático.
func NewChainBuilder(system verifactu.SystemInfo) *ChainBuilder {
	return &ChainBuilder{system: system, now: time.Now}
}

// Append toma el bloqueo de la cadena del tenant, lee el último registro y escribe el
// nuevo enlazado a él. Debe llamarse con los repositorios de la transacción de emisión.
func (b *ChainBuilder) Append(ctx context.Context, repo repository.LedgerRepository, snap *verifactu.InvoiceSnapshot, eventType, actor string) (*entity.LedgerEntry, error) {
	if err := repo.LockTenantChain(ctx, snap.TenantID); err != nil {
		return nil, fmt.Errorf("bloquear cadena: %w", err)
	}
	prev, err := repo.GetLatest(ctx, snap.TenantID)
	if err != nil {
		return nil, fmt.Errorf("último registro: %w", err)
	}

	// recorded_at nunca retrocede respecto al anterior (precisión de PostgreSQL).
	at := b.now().UTC().Truncate(time.Microsecond)
	entry := &entity.LedgerEntry{
		ID:         uuid.New().String(),
		TenantID:   snap.TenantID,
		InvoiceID:  snap.InvoiceID,
		Sequence:   1,
		EventType:  eventType,
		RecordedBy: actor,
	}
	if prev != nil {
		if at.Before(prev.RecordedAt) {
			at = prev.RecordedAt
		}
		prevHash, prevID := prev.Hash, prev.ID
		entry.PrevHash = &prevHash
		entry.PrevEntryID = &prevID
		entry.Sequence = prev.Sequence + 1
	}
	entry.RecordedAt = at

	payload := verifactu.BuildPayload(b.system, snap, eventType, actor, at)
	canonical, err := verifactu.Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	entry.Payload = json.RawMessage(canonical)
	if entry.Hash, err = verifactu.ComputeHash(entry.Payload, entry.PrevHash); err != nil {
		return nil, err
	}

	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
