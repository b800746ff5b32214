package entity

import (
	"encoding/json"
	"time"
)

// Estados del trabajo de remisión. sent y error (agotado) son terminales.
const (
	JobStatusPending = "pending"
	JobStatusSent    = "sent"
	JobStatusError   = "error"
	JobStatusRetry   = "retry"
)

// DefaultMaxAttempts intentos máximos de remisión por registro.
const DefaultMaxAttempts = 3

// SubmissionJob representa la remisión pendiente de un registro al regulador.
type SubmissionJob struct {
	ID            string
	EntryID       string
	TenantID      string
	Status        string
	Attempts      int
	MaxAttempts   int
	Response      json.RawMessage // respuesta del regulador, tal cual
	ErrorMessage  string
	NextAttemptAt *time.Time
	LockedUntil   *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Exhausted indica si el trabajo agotó sus intentos.
func (j *SubmissionJob) Exhausted() bool { return j.Attempts >= j.MaxAttempts }

// IsTerminal indica si el trabajo ya no será reclamado por el worker.
func (j *SubmissionJob) IsTerminal() bool {
	return j.Status == JobStatusSent || (j.Status == JobStatusError && j.Exhausted())
}
