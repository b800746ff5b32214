package verifactu_test

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const respuestaCorrecta = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <tikR:RespuestaRegFactuSistemaFacturacion xmlns:tikR="urn:resp">
      <tikR:CSV>A-ABC123</tikR:CSV>
      <tikR:EstadoEnvio>Correcto</tikR:EstadoEnvio>
      <tikR:RespuestaLinea><tikR:EstadoRegistro>Correcto</tikR:EstadoRegistro></tikR:RespuestaLinea>
    </tikR:RespuestaRegFactuSistemaFacturacion>
  </env:Body>
</env:Envelope>`

const respuestaIncorrecta = `<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <tikR:RespuestaRegFactuSistemaFacturacion xmlns:tikR="urn:resp">
      <tikR:EstadoEnvio>Incorrecto</tikR:EstadoEnvio>
      <tikR:RespuestaLinea>
        <tikR:EstadoRegistro>Incorrecto</tikR:EstadoRegistro>
        <tikR:CodigoErrorRegistro>1100</tikR:CodigoErrorRegistro>
        <tikR:DescripcionErrorRegistro>Valor del campo NIF incorrecto</tikR:DescripcionErrorRegistro>
      </tikR:RespuestaLinea>
    </tikR:RespuestaRegFactuSistemaFacturacion>
  </env:Body>
</env:Envelope>`

const respuestaFault = `<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body><env:Fault><faultcode>env:Client</faultcode><faultstring>Certificado no válido</faultstring></env:Fault></env:Body>
</env:Envelope>`

var testTenant = &entity.Tenant{ID: "t-1", TransmissionMode: entity.TransmissionEnabled}

func newClient(url string, retries int) *verifactu.SOAPClient {
	return verifactu.NewSOAPClient(verifactu.SOAPClientConfig{
		Endpoint: url,
		Timeout:  2 * time.Second,
		RetryMax: retries,
	})
}

func TestSOAPClient_Aceptado(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(respuestaCorrecta))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 0).Transmit(context.Background(), []byte(`<?xml version="1.0"?><doc>x</doc>`), testTenant)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "A-ABC123", res.CSV)
	assert.Equal(t, verifactu.EstadoCorrecto, res.Status)
	assert.Contains(t, res.Raw, "RespuestaRegFactuSistemaFacturacion")

	// El documento viaja dentro del Body sin la declaración XML.
	assert.Contains(t, body, "<soapenv:Body><doc>x</doc></soapenv:Body>")
	assert.NotContains(t, body, "<?xml")
	var probe struct {
		XMLName xml.Name
	}
	assert.NoError(t, xml.Unmarshal([]byte(body), &probe))
	assert.Equal(t, "Envelope", probe.XMLName.Local)
}

func TestSOAPClient_RechazoConErrores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(respuestaIncorrecta))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 0).Transmit(context.Background(), []byte(`<doc/>`), testTenant)
	require.NoError(t, err, "un rechazo no es un error de transporte")
	assert.False(t, res.Accepted)
	assert.Equal(t, verifactu.EstadoIncorrecto, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "1100 Valor del campo NIF incorrecto", res.Errors[0])
	assert.Equal(t, "1100 Valor del campo NIF incorrecto", res.ErrorSummary())
}

func TestSOAPClient_FaultTrasReintentos(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(respuestaFault))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 1).Transmit(context.Background(), []byte(`<doc/>`), testTenant)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "Fault", res.Status)
	assert.True(t, strings.Contains(res.Errors[0], "Certificado no válido"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "1 intento + 1 reintento de transporte")
}

func TestSOAPClient_RespuestaIlegible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("esto no es xml"))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 0).Transmit(context.Background(), []byte(`<doc/>`), testTenant)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "esto no es xml", res.Raw)
}

func TestSOAPClient_ErrorDeTransporte(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(url, 0).Transmit(context.Background(), []byte(`<doc/>`), testTenant)
	assert.Error(t, err)
}

func TestDevTransmitter_AceptaConCSVSimulado(t *testing.T) {
	res, err := verifactu.NewDevTransmitter().Transmit(context.Background(), []byte(`<doc/>`), testTenant)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, strings.HasPrefix(res.CSV, "MOCK-"))
}

func TestNewTransmitter_PorEntorno(t *testing.T) {
	tr, err := verifactu.NewTransmitter("dev", verifactu.SOAPClientConfig{})
	require.NoError(t, err)
	assert.IsType(t, &verifactu.DevTransmitter{}, tr)

	tr, err = verifactu.NewTransmitter("prod", verifactu.SOAPClientConfig{})
	require.NoError(t, err)
	assert.IsType(t, &verifactu.SOAPClient{}, tr)

	_, err = verifactu.NewTransmitter("staging", verifactu.SOAPClientConfig{})
	assert.Error(t, err)
}
