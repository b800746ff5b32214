package signer_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8"?>
<sfLR:RegFactuSistemaFacturacion xmlns:sfLR="urn:lr" xmlns:sf="urn:sf" xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
  <sfLR:RegistroFactura>
    <sf:RegistroAlta>
      <sf:Huella>abc</sf:Huella>
      <ds:Signature>
        <ds:SignatureValue>PENDIENTE-DE-FIRMA</ds:SignatureValue>
      </ds:Signature>
    </sf:RegistroAlta>
  </sfLR:RegistroFactura>
</sfLR:RegFactuSistemaFacturacion>`

// ── helpers ──────────────────────────────────────────────────────────────────

func selfSigned(t *testing.T) (tls.Certificate, *rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "Invorya Test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, key, der
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestPlaceholderSigner_DevuelveDocumentoIntacto(t *testing.T) {
	out, err := signer.NewPlaceholderSigner().Sign([]byte(testDocument))
	require.NoError(t, err)
	assert.Equal(t, testDocument, string(out))
}

func TestXMLDSigSigner_SustituyePlaceholder(t *testing.T) {
	cert, _, der := selfSigned(t)
	s, err := signer.NewXMLDSigSigner(cert)
	require.NoError(t, err)

	out, err := s.Sign([]byte(testDocument))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "PENDIENTE-DE-FIRMA")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	sigs := doc.FindElements("//ds:Signature")
	require.Len(t, sigs, 1, "debe quedar exactamente un bloque de firma")

	sig := sigs[0]
	assert.Equal(t, "RegistroAlta", sig.Parent().Tag, "la firma ocupa el lugar del provisional")
	require.NotNil(t, sig.FindElement(".//ds:SignedInfo"))
	require.NotNil(t, sig.FindElement(".//ds:DigestValue"))

	value := sig.FindElement(".//ds:SignatureValue")
	require.NotNil(t, value)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value.Text()))
	require.NoError(t, err)
	assert.Len(t, raw, 256, "firma RSA-2048")

	certEl := sig.FindElement(".//ds:X509Certificate")
	require.NotNil(t, certEl)
	assert.Equal(t, base64.StdEncoding.EncodeToString(der), certEl.Text())
}

func TestXMLDSigSigner_SinPlaceholderFalla(t *testing.T) {
	cert, _, _ := selfSigned(t)
	s, err := signer.NewXMLDSigSigner(cert)
	require.NoError(t, err)

	_, err = s.Sign([]byte(`<root><a>1</a></root>`))
	assert.Error(t, err)
}

func TestXMLDSigSigner_DocumentoVacio(t *testing.T) {
	cert, _, _ := selfSigned(t)
	s, err := signer.NewXMLDSigSigner(cert)
	require.NoError(t, err)
	_, err = s.Sign(nil)
	assert.Error(t, err)
}

func TestNewXMLDSigSigner_SinLlavePrivada(t *testing.T) {
	_, err := signer.NewXMLDSigSigner(tls.Certificate{})
	assert.Error(t, err)
}

func TestLoadCertificate_PEM(t *testing.T) {
	_, key, der := selfSigned(t)
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600))

	cert, err := signer.LoadCertificate(certPath, keyPath, "")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, "Invorya Test", cert.Leaf.Subject.CommonName)
	_, err = signer.NewXMLDSigSigner(cert)
	assert.NoError(t, err)
}

func TestLoadCertificate_RutaVacia(t *testing.T) {
	_, err := signer.LoadCertificate("", "", "")
	assert.Error(t, err)
}

func TestLoadCertificate_P12Inexistente(t *testing.T) {
	_, err := signer.LoadCertificate(filepath.Join(t.TempDir(), "no.p12"), "", "x")
	assert.Error(t, err)
}

func TestLoadCertificate_Caducado(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "Invorya Caducado"},
		NotBefore:    time.Now().AddDate(-2, 0, 0),
		NotAfter:     time.Now().AddDate(-1, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	// Certificado y llave en el mismo archivo.
	path := filepath.Join(t.TempDir(), "caducado.pem")
	bundle := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})...,
	)
	require.NoError(t, os.WriteFile(path, bundle, 0o600))

	_, err = signer.LoadCertificate(path, "", "")
	assert.ErrorIs(t, err, signer.ErrCertificateNotValid)
	assert.Contains(t, err.Error(), "Invorya Caducado")
}
