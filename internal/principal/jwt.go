package principal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims are the registered plus custom claims carried by host
// bearer tokens.
type tokenClaims struct {
	Groups []string `json:"groups,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// FromToken maps an HMAC-signed bearer token onto an authentication
// context. The subject claim is the principal email. Hosts that
// authenticate through other means build the AuthContext directly.
func FromToken(tokenString string, secret []byte) (AuthContext, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return AuthContext{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return AuthContext{}, fmt.Errorf("invalid token: missing subject")
	}
	return AuthContext{
		Principal: Principal{Email: claims.Subject, Groups: claims.Groups},
		Mode:      ModeDirect,
		Tenant:    claims.Tenant,
	}, nil
}

// NewToken signs a bearer token for the given context, valid for ttl.
// Used by hosts and tests to mint credentials.
func NewToken(ctx AuthContext, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &tokenClaims{
		Groups: ctx.Principal.Groups,
		Tenant: ctx.Tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ctx.Principal.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
