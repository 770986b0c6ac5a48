package tenant

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the identity token could not be verified.
var ErrInvalidToken = errors.New("invalid identity token")

// TokenClaims is the JWT payload carrying the tenant claim.
type TokenClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token with secret and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	tc, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &Claims{Subject: tc.Subject, TenantID: tc.TenantID}, nil
}

// SignToken issues an HS256 token for the given tenant. It is used by the
// CLI to mint tokens for local testing.
func SignToken(subject, tenantID, secret string) (string, error) {
	claims := TokenClaims{
		TenantID:         tenantID,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
