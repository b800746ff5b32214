package verifactu

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// MaxDescriptionRunes limita la concatenación de descripciones de línea del payload.
const MaxDescriptionRunes = 500

const descriptionSeparator = "; "

// IssueDateLayout es el formato de fecha de expedición dentro del payload.
const IssueDateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// SystemInfo identifica al productor y al sistema informático de facturación.
type SystemInfo struct {
	Name          string
	ID            string
	Version       string
	ProducerTaxID string
	ProducerName  string
}

// TaxBreakdown agrupa base y cuota por tipo impositivo. Rate es fracción (0.21).
type TaxBreakdown struct {
	Rate   decimal.Decimal
	Base   decimal.Decimal
	Amount decimal.Decimal
}

// InvoiceSnapshot es la vista inmutable de la factura en el momento del evento.
type InvoiceSnapshot struct {
	InvoiceID           string
	TenantID            string
	TenantTaxID         string
	TenantName          string
	SeriesCode          string
	Number              int64
	FullNumber          string
	IssueDate           time.Time
	InvoiceType         string
	Subtotal            decimal.Decimal
	TaxTotal            decimal.Decimal
	Total               decimal.Decimal
	Taxes               []TaxBreakdown
	CounterpartyTaxID   string
	CounterpartyName    string
	CounterpartyCountry string // vacío si es nacional
	LineDescriptions    []string
	Reason              string // sólo anulación / rectificación
}

// NewSnapshot toma la instantánea de una factura numerada. customer puede ser nil.
func NewSnapshot(inv *entity.Invoice, tenant *entity.Tenant, customer *entity.Customer, seriesCode string) *InvoiceSnapshot {
	snap := &InvoiceSnapshot{
		InvoiceID:   inv.ID,
		TenantID:    inv.TenantID,
		SeriesCode:  seriesCode,
		Number:      inv.Number,
		FullNumber:  inv.FullNumber,
		IssueDate:   inv.Date,
		InvoiceType: inv.Type,
		Subtotal:    inv.Subtotal,
		TaxTotal:    inv.TaxTotal,
		Total:       inv.Total,
		Taxes:       BreakdownFromLines(inv.Lines),
	}
	if tenant != nil {
		snap.TenantTaxID = tenant.TaxID
		snap.TenantName = tenant.Name
	}
	if customer != nil {
		snap.CounterpartyTaxID = customer.TaxID
		snap.CounterpartyName = customer.Name
		if !customer.IsDomestic() {
			snap.CounterpartyCountry = customer.Country()
		}
	}
	for _, l := range inv.Lines {
		snap.LineDescriptions = append(snap.LineDescriptions, l.Description)
	}
	return snap
}

// BreakdownFromLines agrupa las líneas por tipo impositivo, ordenado por tipo ascendente.
func BreakdownFromLines(lines []*entity.InvoiceLine) []TaxBreakdown {
	byRate := make(map[string]*TaxBreakdown)
	for _, l := range lines {
		key := l.TaxRate.String()
		tb, ok := byRate[key]
		if !ok {
			tb = &TaxBreakdown{Rate: l.TaxRate}
			byRate[key] = tb
		}
		tb.Base = tb.Base.Add(l.Subtotal)
		tb.Amount = tb.Amount.Add(l.TaxAmount)
	}
	out := make([]TaxBreakdown, 0, len(byRate))
	for _, tb := range byRate {
		out = append(out, *tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out
}

// Payload es el snapshot canónico que se encadena. Los importes viajan como cadenas
// con dos decimales para que la huella no dependa de la representación numérica.
type Payload struct {
	System       SystemBlock  `json:"system"`
	Tenant       PartyBlock   `json:"tenant"`
	Invoice      InvoiceBlock `json:"invoice"`
	Amounts      AmountsBlock `json:"amounts"`
	TaxBreakdown []TaxBlock   `json:"tax_breakdown"`
	Counterparty PartyBlock   `json:"counterparty"`
	Lines        LinesBlock   `json:"lines"`
	EventType    string       `json:"event_type"`
	Reason       string       `json:"reason,omitempty"`
	Timestamp    string       `json:"timestamp"`
	RecordedBy   string       `json:"recorded_by"`
}

type SystemBlock struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	Version       string `json:"version"`
	ProducerTaxID string `json:"producer_tax_id"`
	ProducerName  string `json:"producer_name"`
}

type PartyBlock struct {
	ID      string `json:"id,omitempty"`
	TaxID   string `json:"tax_id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

type InvoiceBlock struct {
	ID         string `json:"id"`
	Number     int64  `json:"number"`
	FullNumber string `json:"full_number"`
	Series     string `json:"series"`
	IssueDate  string `json:"issue_date"`
	Type       string `json:"type"`
}

type AmountsBlock struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// TaxBlock: Rate en porcentaje ("21.00").
type TaxBlock struct {
	Rate   string `json:"rate"`
	Base   string `json:"base"`
	Amount string `json:"amount"`
}

type LinesBlock struct {
	Count        int    `json:"count"`
	Descriptions string `json:"descriptions"`
}

// BuildPayload arma el snapshot canónico de un evento de la factura.
func BuildPayload(system SystemInfo, snap *InvoiceSnapshot, eventType, actor string, at time.Time) *Payload {
	p := &Payload{
		System: SystemBlock{
			Name:          system.Name,
			ID:            system.ID,
			Version:       system.Version,
			ProducerTaxID: system.ProducerTaxID,
			ProducerName:  normalizeText(system.ProducerName),
		},
		Tenant: PartyBlock{
			ID:    snap.TenantID,
			TaxID: snap.TenantTaxID,
			Name:  normalizeText(snap.TenantName),
		},
		Invoice: InvoiceBlock{
			ID:         snap.InvoiceID,
			Number:     snap.Number,
			FullNumber: snap.FullNumber,
			Series:     snap.SeriesCode,
			IssueDate:  snap.IssueDate.Format(IssueDateLayout),
			Type:       snap.InvoiceType,
		},
		Amounts: AmountsBlock{
			Subtotal: money(snap.Subtotal),
			Tax:      money(snap.TaxTotal),
			Total:    money(snap.Total),
		},
		TaxBreakdown: make([]TaxBlock, 0, len(snap.Taxes)),
		Counterparty: PartyBlock{
			TaxID:   snap.CounterpartyTaxID,
			Name:    normalizeText(snap.CounterpartyName),
			Country: snap.CounterpartyCountry,
		},
		Lines: LinesBlock{
			Count:        len(snap.LineDescriptions),
			Descriptions: JoinDescriptions(snap.LineDescriptions),
		},
		EventType:  eventType,
		Reason:     normalizeText(snap.Reason),
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
		RecordedBy: actor,
	}
	for _, t := range snap.Taxes {
		p.TaxBreakdown = append(p.TaxBreakdown, TaxBlock{
			Rate:   money(t.Rate.Mul(hundred)),
			Base:   money(t.Base),
			Amount: money(t.Amount),
		})
	}
	return p
}

// DecodePayload lee un payload almacenado en un registro de la cadena.
func DecodePayload(raw json.RawMessage) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("verifactu: payload ilegible: %w", err)
	}
	return &p, nil
}

// ParsedIssueDate devuelve la fecha de expedición del payload.
func (p *Payload) ParsedIssueDate() (time.Time, error) {
	return time.Parse(IssueDateLayout, p.Invoice.IssueDate)
}

// JoinDescriptions concatena las descripciones (NFC) con "; " y trunca a
// MaxDescriptionRunes sin partir caracteres.
func JoinDescriptions(descs []string) string {
	parts := make([]string, 0, len(descs))
	for _, d := range descs {
		d = normalizeText(d)
		if d != "" {
			parts = append(parts, d)
		}
	}
	joined := strings.Join(parts, descriptionSeparator)
	if utf8.RuneCountInString(joined) <= MaxDescriptionRunes {
		return joined
	}
	return string([]rune(joined)[:MaxDescriptionRunes])
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
