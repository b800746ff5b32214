package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento registrados en la cadena.
const (
	EventCreation      = "creation"
	EventRectification = "rectification"
	EventVoid          = "void"
)

// LedgerEntry es un registro legal: nodo append-only de la cadena del tenant.
// El primer registro del tenant tiene PrevHash nil; los siguientes apuntan al hash y
// al ID del registro inmediatamente anterior. Una vez escrito no se modifica.
type LedgerEntry struct {
	ID          string
	TenantID    string
	InvoiceID   string
	Sequence    int64 // posición en la cadena (1 = primer registro)
	EventType   string
	Hash        string
	PrevHash    *string
	PrevEntryID *string
	Payload     json.RawMessage // snapshot canónico
	RecordedBy  string
	RecordedAt  time.Time
}

// IsFirst indica si el registro abre la cadena del tenant.
func (e *LedgerEntry) IsFirst() bool { return e.PrevHash == nil }
