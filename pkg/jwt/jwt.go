// Package jwt firma y valida los tokens de acceso de la API. Cada token identifica al
// usuario (sub), al tenant emisor y al rol con el que opera.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tolerancia de reloj entre quien firma y la API.
const clockSkew = 30 * time.Second

var (
	ErrEmptySecret      = errors.New("jwt: secret vacío")
	ErrIncompleteClaims = errors.New("jwt: el token no identifica usuario y tenant")
)

// Identity es lo que la API necesita saber del llamador.
type Identity struct {
	UserID   string
	TenantID string
	Role     string // "admin" | "facturador" | "auditor"; vacío en tokens sin rol
}

// Claims del token. El usuario viaja en el claim estándar sub.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// Sign emite un token HS256 para id, válido durante ttl.
func Sign(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if id.UserID == "" || id.TenantID == "" {
		return "", ErrIncompleteClaims
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: id.TenantID,
		Role:     id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify comprueba firma, algoritmo y expiración, y devuelve la identidad del token.
// Los tokens sin exp se rechazan.
func Verify(secret, tokenString string) (Identity, error) {
	if secret == "" {
		return Identity{}, ErrEmptySecret
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("jwt: %w", err)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return Identity{}, ErrIncompleteClaims
	}
	return Identity{UserID: claims.Subject, TenantID: claims.TenantID, Role: claims.Role}, nil
}
