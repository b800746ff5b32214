// Firma XMLDSig enveloped (RSA-SHA256) del documento de remisión.
// Sustituye el bloque ds:Signature provisional que deja el encoder.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// XMLDSigSigner firma con un certificado RSA cargado desde .p12 o PEM.
type XMLDSigSigner struct {
	priv *rsa.PrivateKey
	cert *x509.Certificate
}

// NewXMLDSigSigner valida que el certificado incluya llave privada RSA.
func NewXMLDSigSigner(cert tls.Certificate) (*XMLDSigSigner, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("signer: certificado vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: el certificado debe incluir llave privada RSA")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("signer: parsear certificado: %w", err)
	}
	return &XMLDSigSigner{priv: priv, cert: x509Cert}, nil
}

// Sign implementa Signer.
func (s *XMLDSigSigner) Sign(document []byte) ([]byte, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("signer: documento vacío")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(document); err != nil {
		return nil, fmt.Errorf("signer: parsear documento: %w", err)
	}
	placeholder := doc.FindElement(placeholderPath)
	if placeholder == nil {
		return nil, fmt.Errorf("signer: no se encontró el bloque ds:Signature provisional")
	}
	parent := placeholder.Parent()
	idx := placeholder.Index()
	parent.RemoveChildAt(idx)

	// 1) Digest del documento sin el bloque de firma (transformación enveloped)
	unsigned, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: serializar documento: %w", err)
	}
	canonicalDoc, err := canonicalizeXML(unsigned)
	if err != nil {
		canonicalDoc = unsigned
	}
	docDigest := sha256.Sum256(canonicalDoc)

	// 2) SignedInfo canonicalizado y firmado con RSA-SHA256
	signedInfoXML := buildSignedInfo(base64.StdEncoding.EncodeToString(docDigest[:]))
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, s.priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("signer: firmar SignedInfo: %w", err)
	}

	// 3) ds:Signature completo en la posición del provisional
	sigDoc := etree.NewDocument()
	sigXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(s.cert.Raw))
	if err := sigDoc.ReadFromString(sigXML); err != nil {
		return nil, fmt.Errorf("signer: parsear Signature: %w", err)
	}
	parent.InsertChildAt(idx, sigDoc.Root())

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: serializar documento firmado: %w", err)
	}
	return out, nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}
