package verifactu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
)

const soapNS = "http://schemas.xmlsoap.org/soap/envelope/"

// SOAPClientConfig parámetros del cliente SOAP.
type SOAPClientConfig struct {
	Endpoint    string
	Timeout     time.Duration // por petición
	RetryMax    int           // reintentos de transporte (errores de red, 5xx, 429)
	Certificate *tls.Certificate
	Logger      *logger.Logger
}

// SOAPClient implementa Transmitter contra el servicio SOAP del regulador. Los fallos de
// transporte se reintentan con go-retryablehttp; los rechazos se devuelven como resultado.
type SOAPClient struct {
	endpoint string
	client   *retryablehttp.Client
}

// NewSOAPClient construye el cliente con reintentos y, si hay certificado, TLS mutuo.
func NewSOAPClient(cfg SOAPClientConfig) *SOAPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	// Devuelve la última respuesta (p. ej. un SOAP Fault 500) en vez de un error genérico.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Logger != nil {
		client.Logger = retryLogger{log: cfg.Logger.Component("soap_client")}
	} else {
		client.Logger = nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.HTTPClient.Timeout = timeout
	if cfg.Certificate != nil {
		if tr, ok := client.HTTPClient.Transport.(*http.Transport); ok {
			tr.TLSClientConfig = &tls.Config{
				Certificates: []tls.Certificate{*cfg.Certificate},
				MinVersion:   tls.VersionTLS12,
			}
		}
	}
	return &SOAPClient{endpoint: cfg.Endpoint, client: client}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content []byte `xml:",innerxml"`
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Respuesta *respuestaRegFactu `xml:"RespuestaRegFactuSistemaFacturacion"`
	Fault     *soapFault         `xml:"Fault"`
}

type respuestaRegFactu struct {
	CSV         string           `xml:"CSV"`
	EstadoEnvio string           `xml:"EstadoEnvio"`
	Lineas      []respuestaLinea `xml:"RespuestaLinea"`
}

type respuestaLinea struct {
	EstadoRegistro           string `xml:"EstadoRegistro"`
	CodigoErrorRegistro      string `xml:"CodigoErrorRegistro"`
	DescripcionErrorRegistro string `xml:"DescripcionErrorRegistro"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Transmit ──────────────────────────────────────────────────────────────────

// Transmit implementa Transmitter.
func (c *SOAPClient) Transmit(ctx context.Context, document []byte, tenant *entity.Tenant) (*TransmitResult, error) {
	envelope := soapEnvelope{
		XmlnsS: soapNS,
		Body:   soapBody{Content: stripXMLDeclaration(document)},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida (tenant %s): %w", tenant.ID, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	return parseResponse(resp.StatusCode, rawBody), nil
}

// parseResponse desempaqueta la respuesta SOAP. Nunca falla: lo ilegible es un rechazo.
func parseResponse(statusCode int, rawBody []byte) *TransmitResult {
	raw := string(rawBody)
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return &TransmitResult{
			Status: fmt.Sprintf("HTTP %d", statusCode),
			Errors: []string{"no se pudo parsear respuesta SOAP: " + err.Error()},
			Raw:    raw,
		}
	}

	if f := envResp.Body.Fault; f != nil {
		return &TransmitResult{
			Status: "Fault",
			Errors: []string{fmt.Sprintf("SOAP Fault [%s]: %s", strings.TrimSpace(f.FaultCode), strings.TrimSpace(f.FaultString))},
			Raw:    raw,
		}
	}

	r := envResp.Body.Respuesta
	if r == nil {
		return &TransmitResult{
			Status: fmt.Sprintf("HTTP %d", statusCode),
			Errors: []string{"respuesta SOAP vacía o inesperada"},
			Raw:    raw,
		}
	}

	res := &TransmitResult{
		CSV:    strings.TrimSpace(r.CSV),
		Status: strings.TrimSpace(r.EstadoEnvio),
		Raw:    raw,
	}
	rejectedLine := false
	for _, l := range r.Lineas {
		if strings.TrimSpace(l.EstadoRegistro) == EstadoIncorrecto {
			rejectedLine = true
		}
		if l.DescripcionErrorRegistro != "" {
			res.Errors = append(res.Errors, strings.TrimSpace(l.CodigoErrorRegistro+" "+l.DescripcionErrorRegistro))
		}
	}
	switch res.Status {
	case EstadoCorrecto:
		res.Accepted = true
	case EstadoParcialmenteCorrecto:
		res.Accepted = !rejectedLine
	}
	return res
}

func stripXMLDeclaration(doc []byte) []byte {
	doc = bytes.TrimSpace(doc)
	if bytes.HasPrefix(doc, []byte("<?xml")) {
		if i := bytes.Index(doc, []byte("?>")); i >= 0 {
			return bytes.TrimSpace(doc[i+2:])
		}
	}
	return doc
}

// retryLogger adapta el logger de la aplicación a retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logger.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }

var _ retryablehttp.LeveledLogger = retryLogger{}
