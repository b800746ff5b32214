package verifactu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

// Estados de envío devueltos por el regulador.
const (
	EstadoCorrecto             = "Correcto"
	EstadoParcialmenteCorrecto = "ParcialmenteCorrecto"
	EstadoIncorrecto           = "Incorrecto"
	EstadoAceptadoConErrores   = "AceptadoConErrores"
)

// TransmitResult resultado de la remisión de un registro. Se guarda tal cual en el trabajo.
type TransmitResult struct {
	Accepted bool     `json:"accepted"`
	CSV      string   `json:"csv,omitempty"` // código seguro de verificación
	Status   string   `json:"status"`
	Errors   []string `json:"errors,omitempty"`
	Raw      string   `json:"raw,omitempty"`
}

// ErrorSummary une los mensajes de rechazo en una sola línea.
func (r *TransmitResult) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return "rechazado por el regulador (" + r.Status + ")"
	}
	return strings.Join(r.Errors, "; ")
}

// Transmitter entrega el documento firmado al regulador. Un error indica fallo de
// transporte; un rechazo del regulador llega como TransmitResult.Accepted == false.
type Transmitter interface {
	Transmit(ctx context.Context, document []byte, tenant *entity.Tenant) (*TransmitResult, error)
}

// DevTransmitter simula la remisión en desarrollo: acepta todo con un CSV ficticio.
type DevTransmitter struct{}

// NewDevTransmitter crea el transmisor simulado.
func NewDevTransmitter() *DevTransmitter {
	return &DevTransmitter{}
}

// Transmit implementa Transmitter.
func (DevTransmitter) Transmit(ctx context.Context, document []byte, tenant *entity.Tenant) (*TransmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("verifactu: documento vacío")
	}
	return &TransmitResult{
		Accepted: true,
		CSV:      "MOCK-" + strings.ToUpper(uuid.NewString()[:8]),
		Status:   EstadoCorrecto,
		Raw:      fmt.Sprintf("[DEV] %d bytes no enviados (tenant %s, %s)", len(document), tenant.ID, time.Now().UTC().Format(time.RFC3339)),
	}, nil
}

// NewTransmitter elige la implementación según el entorno: dev simula, test/prod envía por SOAP.
func NewTransmitter(appEnv string, cfg SOAPClientConfig) (Transmitter, error) {
	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case AppEnvDev, "":
		return NewDevTransmitter(), nil
	case AppEnvTest:
		if cfg.Endpoint == "" {
			cfg.Endpoint = EndpointTest
		}
		return NewSOAPClient(cfg), nil
	case AppEnvProd:
		if cfg.Endpoint == "" {
			cfg.Endpoint = EndpointProd
		}
		return NewSOAPClient(cfg), nil
	default:
		return nil, fmt.Errorf("verifactu: entorno desconocido %q (usar dev|test|prod)", appEnv)
	}
}

var (
	_ Transmitter = (*DevTransmitter)(nil)
	_ Transmitter = (*SOAPClient)(nil)
)
