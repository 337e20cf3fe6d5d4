package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/modvault/monetization-agent/internal/application"
	"github.com/modvault/monetization-agent/internal/domain"
)

// AdminTokenVerifier validates HS256 bearer tokens for the admin
// surface. The secret is shared with the operator tooling that mints
// tokens; the application layer only ever sees the resolved Actor.
type AdminTokenVerifier struct {
	secret []byte
	nowFn  func() time.Time
}

func NewAdminTokenVerifier(secret string) (*AdminTokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("admin token secret is required")
	}
	return &AdminTokenVerifier{secret: []byte(secret), nowFn: time.Now}, nil
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token and returns the actor it
// asserts. Invalid or expired tokens map to domain.ErrUnauthorized,
// valid tokens without the admin role to domain.ErrForbidden.
func (v *AdminTokenVerifier) Verify(raw string) (application.Actor, error) {
	parsed, err := jwt.ParseWithClaims(raw, &adminClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(v.nowFn))
	if err != nil {
		return application.Actor{}, domain.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*adminClaims)
	if !ok || !parsed.Valid {
		return application.Actor{}, domain.ErrUnauthorized
	}
	if claims.Role != "admin" {
		return application.Actor{}, domain.ErrForbidden
	}
	return application.Actor{SubjectID: claims.Subject, Role: claims.Role}, nil
}

// Sign mints a token with the given subject and role. Used by operator
// tooling and tests.
func (v *AdminTokenVerifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := v.nowFn().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
