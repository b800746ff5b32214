package entity

import (
	"strings"
	"time"
)

// DomesticCountry país del obligado a emitir: sus destinatarios se identifican por NIF.
const DomesticCountry = "ES"

// Customer destinatario de las facturas del tenant.
type Customer struct {
	ID          string
	TenantID    string
	Name        string
	TaxID       string // NIF, o identificador fiscal extranjero si CountryCode != ES
	CountryCode string // ISO 3166-1 alfa-2; vacío = ES
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Country devuelve el código de país normalizado (ES por defecto).
func (c *Customer) Country() string {
	cc := strings.ToUpper(strings.TrimSpace(c.CountryCode))
	if cc == "" {
		return DomesticCountry
	}
	return cc
}

// IsDomestic indica si el destinatario se identifica con NIF español.
func (c *Customer) IsDomestic() bool {
	return c.Country() == DomesticCountry
}
