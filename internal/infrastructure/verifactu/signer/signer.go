// Package signer: punto de sustitución de la firma del documento de remisión.
package signer

// Signer firma el documento del registro y devuelve el documento con la firma
// en lugar del bloque ds:Signature provisional.
type Signer interface {
	Sign(document []byte) ([]byte, error)
}

// PlaceholderSigner deja el documento tal cual, con el bloque de firma provisional.
type PlaceholderSigner struct{}

// NewPlaceholderSigner crea el firmador provisional.
func NewPlaceholderSigner() *PlaceholderSigner {
	return &PlaceholderSigner{}
}

// Sign implementa Signer.
func (PlaceholderSigner) Sign(document []byte) ([]byte, error) {
	return document, nil
}

var (
	_ Signer = (*PlaceholderSigner)(nil)
	_ Signer = (*XMLDSigSigner)(nil)
)
