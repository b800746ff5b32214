package entity

import "time"

// Modos de remisión al regulador (configuración por tenant).
const (
	TransmissionDisabled = "disabled"
	TransmissionEnabled  = "enabled"
)

// Tenant representa la entidad facturadora (multi-tenant). Cada tenant es dueño de
// una única cadena de registros independiente.
type Tenant struct {
	ID               string
	Name             string
	TaxID            string // NIF del obligado a emitir
	Address          string
	Email            string
	Status           string // active, suspended, inactive
	TransmissionMode string // ver constantes Transmission*
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TransmissionIsEnabled indica si el tenant remite sus registros al regulador.
func (t *Tenant) TransmissionIsEnabled() bool {
	return t != nil && t.TransmissionMode == TransmissionEnabled
}
