package verifactu

import (
	"fmt"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// Tipos de discrepancia detectados al verificar una cadena.
const (
	ErrKindGenesisPrevHash   = "genesis_prev_hash"
	ErrKindHashMismatch      = "hash_mismatch"
	ErrKindPrevHashMismatch  = "prev_hash_mismatch"
	ErrKindPrevEntryMismatch = "prev_entry_mismatch"
	ErrKindPayloadUnreadable = "payload_unreadable"
)

// ChainError describe una discrepancia concreta en un registro.
type ChainError struct {
	EntryID  string `json:"entry_id"`
	Position int    `json:"position"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// VerificationResult resultado de verificar la cadena de un tenant.
type VerificationResult struct {
	Valid        bool         `json:"valid"`
	TotalEntries int          `json:"total_entries"`
	Errors       []ChainError `json:"errors"`
}

// VerifyChain recorre los registros (ya ordenados) y acumula todas las discrepancias:
// el primero no debe tener predecesor, cada huella se recalcula desde el payload y el
// prevHash almacenados, y cada enlace debe apuntar al registro anterior. Nunca corta en
// el primer error ni corrige nada.
func VerifyChain(entries []*entity.LedgerEntry) *VerificationResult {
	res := &VerificationResult{TotalEntries: len(entries), Errors: []ChainError{}}
	add := func(e *entity.LedgerEntry, pos int, kind, format string, args ...any) {
		res.Errors = append(res.Errors, ChainError{
			EntryID:  e.ID,
			Position: pos,
			Kind:     kind,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for i, e := range entries {
		if i == 0 {
			if e.PrevHash != nil {
				add(e, i, ErrKindGenesisPrevHash, "el primer registro tiene prev_hash %q", *e.PrevHash)
			}
			if e.PrevEntryID != nil {
				add(e, i, ErrKindPrevEntryMismatch, "el primer registro apunta al registro %s", *e.PrevEntryID)
			}
		} else {
			prev := entries[i-1]
			switch {
			case e.PrevHash == nil:
				add(e, i, ErrKindPrevHashMismatch, "prev_hash vacío, se esperaba %s", prev.Hash)
			case *e.PrevHash != prev.Hash:
				add(e, i, ErrKindPrevHashMismatch, "prev_hash %s no coincide con la huella anterior %s", *e.PrevHash, prev.Hash)
			}
			switch {
			case e.PrevEntryID == nil:
				add(e, i, ErrKindPrevEntryMismatch, "prev_entry_id vacío, se esperaba %s", prev.ID)
			case *e.PrevEntryID != prev.ID:
				add(e, i, ErrKindPrevEntryMismatch, "prev_entry_id %s no coincide con el registro anterior %s", *e.PrevEntryID, prev.ID)
			}
		}

		canonical, err := Canonicalize(e.Payload)
		if err != nil {
			add(e, i, ErrKindPayloadUnreadable, "%v", err)
			continue
		}
		if got := hashCanonical(canonical, e.PrevHash); got != e.Hash {
			add(e, i, ErrKindHashMismatch, "huella almacenada %s, recalculada %s", e.Hash, got)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}
