// Package verifactu: reglas puras del registro de facturación encadenado.
// Numeración de series, huella SHA-256 encadenada, snapshot canónico y verificación
// de integridad. Sin dependencias de infraestructura.
package verifactu

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonicalize serializa v con orden de claves estable: ida y vuelta por JSON genérico
// (los números se conservan tal cual con UseNumber) y re-codificación sin escape HTML.
// El mismo contenido produce siempre los mismos bytes, venga de un struct o de JSONB.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("verifactu: serializar payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("verifactu: decodificar payload: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("verifactu: canonicalizar payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeHash calcula la huella del registro:
//
//	hex(SHA-256(canonicalize(payload) || prevHash))
//
// con prevHash vacío para el primer registro de la cadena.
func ComputeHash(payload any, prevHash *string) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return hashCanonical(canonical, prevHash), nil
}

func hashCanonical(canonical []byte, prevHash *string) string {
	h := sha256.New()
	h.Write(canonical)
	if prevHash != nil {
		h.Write([]byte(*prevHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}
