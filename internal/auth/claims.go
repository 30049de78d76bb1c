// Package auth verifies the bearer/query-param JWTs that gate both the SSE
// and WebSocket upgrade paths, generalized from the teacher event-service's
// transport/http/middleware/auth.go HS256 verification (the notifier only
// ever verifies tokens; issuance is an external collaborator per spec
// §1 scope).
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims is the session identity carried by a verified token.
type Claims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Verifier checks the bearer/query-param token presented by a client
// connecting to the stream or WebSocket endpoints.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates raw, returning the session identity. A
// missing or malformed token, bad signature, wrong issuer, or a missing
// uid/tenant_id claim is ErrInvalidToken (or ErrMissingToken for an empty
// string), both terminal for the connection per §7.
func (v *Verifier) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMissingToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.TenantID) == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value, for the SSE handshake.
func FromAuthorizationHeader(header string) string {
	h := strings.TrimSpace(header)
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
