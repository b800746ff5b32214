// Package verifactu implementa el formato de remisión VeriFactu (AEAT): documento XML
// del registro, envoltorio SOAP y clientes de transmisión.
package verifactu

import (
	"strings"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvDev no transmite: DevTransmitter acepta todo con un CSV simulado.
	AppEnvDev = "dev"
	// AppEnvTest entorno de pruebas de la AEAT.
	AppEnvTest = "test"
	// AppEnvProd entorno de producción de la AEAT.
	AppEnvProd = "prod"

	EndpointTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	EndpointProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
)

// Namespaces del esquema de suministro.
const (
	NsSuministroLR   = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	NsSuministroInfo = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
	NsDs             = "http://www.w3.org/2000/09/xmldsig#"
)

const (
	schemaVersion = "1.0"
	// tipoHuellaSHA256 código de algoritmo de huella (01 = SHA-256).
	tipoHuellaSHA256 = "01"
	// SignaturePlaceholder contenido del bloque ds:Signature hasta que lo sustituye el firmador.
	SignaturePlaceholder = "PENDIENTE-DE-FIRMA"

	dateLayout     = "02-01-2006"
	dateTimeLayout = "2006-01-02T15:04:05Z07:00"
)

// Códigos TipoFactura del regulador.
const (
	TipoFacturaF1 = "F1" // factura completa
	TipoFacturaF2 = "F2" // simplificada
	TipoFacturaF3 = "F3" // sustitutiva de simplificadas
	TipoFacturaR1 = "R1" // rectificativa (art. 80.1 y 80.2)
	TipoFacturaR5 = "R5" // rectificativa de simplificadas
)

// IDTypeNIFIVA tipo de identificación de un destinatario extranjero con NIF-IVA.
const IDTypeNIFIVA = "02"

var invoiceTypeCodes = map[string]string{
	entity.InvoiceTypeStandard:             TipoFacturaF1,
	entity.InvoiceTypeSimplified:           TipoFacturaF2,
	entity.InvoiceTypeSubstitute:           TipoFacturaF3,
	entity.InvoiceTypeRectifying:           TipoFacturaR1,
	entity.InvoiceTypeRectifyingSimplified: TipoFacturaR5,
}

// TypeCode traduce el tipo interno al código TipoFactura. Un evento de rectificación
// fuerza R1 salvo que el tipo ya sea rectificativo; un tipo desconocido se envía como F1.
func TypeCode(invoiceType, eventType string) string {
	code, ok := invoiceTypeCodes[invoiceType]
	if !ok {
		code = TipoFacturaF1
	}
	if eventType == entity.EventRectification && !strings.HasPrefix(code, "R") {
		return TipoFacturaR1
	}
	return code
}

// FormatDate formatea una fecha como dd-mm-yyyy.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
