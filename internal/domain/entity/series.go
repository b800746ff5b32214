package entity

import "time"

// Series es un contador de numeración por tenant (ej. una serie por ejercicio).
// CurrentNumber nunca decrece y un número reservado nunca se reutiliza.
// (TenantID, Code) es único.
type Series struct {
	ID            string
	TenantID      string
	Code          string // Código de la serie (ej: "2025")
	Prefix        string // Opcional (ej: "FRA")
	CurrentNumber int64
	IsActive      bool
	IsDefault     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
