package signer

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// ErrCertificateNotValid indica un certificado caducado o todavía no vigente. El
// regulador rechaza tanto la firma como el TLS mutuo con él.
var ErrCertificateNotValid = errors.New("signer: certificado fuera de su periodo de validez")

// LoadCertificate carga el certificado del obligado tributario. Las extensiones .p12 y
// .pfx se leen como PKCS#12 con password; el resto como PEM, con la llave en keyPath o
// en el mismo archivo. El resultado siempre trae Leaf y está vigente.
func LoadCertificate(certPath, keyPath, password string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, errors.New("signer: ruta de certificado vacía")
	}

	var (
		cert tls.Certificate
		err  error
	)
	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		cert, err = loadPKCS12(certPath, password)
	default:
		cert, err = loadPEM(certPath, keyPath)
	}
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := checkValidity(cert.Leaf, time.Now()); err != nil {
		return tls.Certificate{}, err
	}
	return cert, nil
}

func loadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	key, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{leaf.Raw}, PrivateKey: key, Leaf: leaf}, nil
}

func loadPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	if cert.Leaf == nil {
		if cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return tls.Certificate{}, fmt.Errorf("parsear certificado: %w", err)
		}
	}
	return cert, nil
}

func checkValidity(leaf *x509.Certificate, now time.Time) error {
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: %s válido de %s a %s", ErrCertificateNotValid,
			leaf.Subject.CommonName,
			leaf.NotBefore.UTC().Format(time.DateOnly), leaf.NotAfter.UTC().Format(time.DateOnly))
	}
	return nil
}
