package verifactu

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	domainvf "github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
)

// PreviousRecord identifica el registro anterior de la cadena en el bloque Encadenamiento.
type PreviousRecord struct {
	IssuerTaxID string
	FullNumber  string
	IssueDate   time.Time
	Hash        string
}

// Encoder construye el documento RegFactuSistemaFacturacion de un registro (sin firma).
type Encoder struct{}

// NewEncoder crea el encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeEntry decodifica el payload del registro (y el del anterior, si existe) y genera el documento.
func (e *Encoder) EncodeEntry(entry, prev *entity.LedgerEntry) ([]byte, error) {
	if entry == nil {
		return nil, fmt.Errorf("verifactu: registro nil")
	}
	payload, err := domainvf.DecodePayload(entry.Payload)
	if err != nil {
		return nil, err
	}
	var prevRec *PreviousRecord
	if entry.PrevHash != nil {
		if prev == nil {
			return nil, fmt.Errorf("verifactu: registro %s sin registro anterior cargado", entry.ID)
		}
		prevPayload, err := domainvf.DecodePayload(prev.Payload)
		if err != nil {
			return nil, fmt.Errorf("verifactu: registro anterior %s: %w", prev.ID, err)
		}
		prevDate, err := prevPayload.ParsedIssueDate()
		if err != nil {
			return nil, fmt.Errorf("verifactu: fecha del registro anterior %s: %w", prev.ID, err)
		}
		prevRec = &PreviousRecord{
			IssuerTaxID: prevPayload.Tenant.TaxID,
			FullNumber:  prevPayload.Invoice.FullNumber,
			IssueDate:   prevDate,
			Hash:        *entry.PrevHash,
		}
	}
	return e.Encode(payload, entry.Hash, prevRec)
}

// Encode genera el documento a partir del payload canónico, su huella y el registro
// anterior (nil = primer registro de la cadena).
func (e *Encoder) Encode(p *domainvf.Payload, hash string, prev *PreviousRecord) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("verifactu: payload nil")
	}
	if hash == "" {
		return nil, fmt.Errorf("verifactu: huella vacía")
	}
	issueDate, err := p.ParsedIssueDate()
	if err != nil {
		return nil, fmt.Errorf("verifactu: fecha de expedición: %w", err)
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("verifactu: marca de tiempo: %w", err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("sfLR:RegFactuSistemaFacturacion")
	root.CreateAttr("xmlns:sfLR", NsSuministroLR)
	root.CreateAttr("xmlns:sf", NsSuministroInfo)
	root.CreateAttr("xmlns:ds", NsDs)

	// ---- Cabecera: obligado a emitir (tenant)
	cab := root.CreateElement("sfLR:Cabecera")
	obligado := cab.CreateElement("sf:ObligadoEmision")
	text(obligado, "sf:NombreRazon", p.Tenant.Name)
	text(obligado, "sf:NIF", p.Tenant.TaxID)

	reg := root.CreateElement("sfLR:RegistroFactura")
	isVoid := p.EventType == entity.EventVoid
	var rec *etree.Element
	if isVoid {
		rec = reg.CreateElement("sf:RegistroAnulacion")
	} else {
		rec = reg.CreateElement("sf:RegistroAlta")
	}
	text(rec, "sf:IDVersion", schemaVersion)

	id := rec.CreateElement("sf:IDFactura")
	text(id, "sf:IDEmisorFactura", p.Tenant.TaxID)
	text(id, "sf:NumSerieFactura", p.Invoice.FullNumber)
	text(id, "sf:FechaExpedicionFactura", FormatDate(issueDate))

	if !isVoid {
		e.writeAlta(rec, p)
	}

	// ---- Encadenamiento
	chain := rec.CreateElement("sf:Encadenamiento")
	if prev == nil {
		text(chain, "sf:PrimerRegistro", "S")
	} else {
		ant := chain.CreateElement("sf:RegistroAnterior")
		text(ant, "sf:IDEmisorFactura", prev.IssuerTaxID)
		text(ant, "sf:NumSerieFactura", prev.FullNumber)
		text(ant, "sf:FechaExpedicionFactura", FormatDate(prev.IssueDate))
		text(ant, "sf:Huella", prev.Hash)
	}

	// ---- Sistema informático (productor)
	sys := rec.CreateElement("sf:SistemaInformatico")
	text(sys, "sf:NombreRazon", p.System.ProducerName)
	text(sys, "sf:NIF", p.System.ProducerTaxID)
	text(sys, "sf:NombreSistemaInformatico", p.System.Name)
	text(sys, "sf:IdSistemaInformatico", p.System.ID)
	text(sys, "sf:Version", p.System.Version)

	text(rec, "sf:FechaHoraHusoGenRegistro", generatedAt.Format(dateTimeLayout))
	text(rec, "sf:TipoHuella", tipoHuellaSHA256)
	text(rec, "sf:Huella", hash)

	// Placeholder: el firmador lo sustituye por la firma real.
	sig := rec.CreateElement("ds:Signature")
	text(sig, "ds:SignatureValue", SignaturePlaceholder)

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("verifactu: serializar documento: %w", err)
	}
	return out, nil
}

func (e *Encoder) writeAlta(rec *etree.Element, p *domainvf.Payload) {
	code := TypeCode(p.Invoice.Type, p.EventType)
	text(rec, "sf:NombreRazonEmisor", p.Tenant.Name)
	text(rec, "sf:TipoFactura", code)
	if strings.HasPrefix(code, "R") {
		// I = rectificación por diferencias
		text(rec, "sf:TipoRectificativa", "I")
	}
	desc := p.Lines.Descriptions
	if p.Reason != "" {
		desc = p.Reason
	}
	if desc == "" {
		desc = p.Invoice.FullNumber
	}
	text(rec, "sf:DescripcionOperacion", desc)

	if p.Counterparty.TaxID != "" || p.Counterparty.Name != "" {
		dest := rec.CreateElement("sf:Destinatarios").CreateElement("sf:IDDestinatario")
		text(dest, "sf:NombreRazon", p.Counterparty.Name)
		if p.Counterparty.Country == "" {
			text(dest, "sf:NIF", p.Counterparty.TaxID)
		} else {
			// Extranjero: IDOtro con NIF-IVA (IDType 02).
			otro := dest.CreateElement("sf:IDOtro")
			text(otro, "sf:CodigoPais", p.Counterparty.Country)
			text(otro, "sf:IDType", IDTypeNIFIVA)
			text(otro, "sf:ID", p.Counterparty.TaxID)
		}
	}

	desglose := rec.CreateElement("sf:Desglose")
	for _, t := range p.TaxBreakdown {
		det := desglose.CreateElement("sf:DetalleDesglose")
		text(det, "sf:TipoImpositivo", t.Rate)
		text(det, "sf:BaseImponibleOimporteNoSujeto", t.Base)
		text(det, "sf:CuotaRepercutida", t.Amount)
	}

	text(rec, "sf:CuotaTotal", p.Amounts.Tax)
	text(rec, "sf:ImporteTotal", p.Amounts.Total)
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}
