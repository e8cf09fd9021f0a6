// Package jwttoken verifies the HS256 staff tokens the API accepts. The
// subject is the staff member's user id and the role claim one of the
// policy roles.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"civreg/internal/platform/middleware"
	"civreg/internal/policy"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

const clockSkew = 30 * time.Second

var (
	errInvalid = dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	errExpired = dErrors.New(dErrors.CodeUnauthorized, "token has expired")
)

// Claims are the staff claims carried by an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies staff tokens with one shared key.
type Tokens struct {
	key    []byte
	parser *jwt.Parser
	issuer string
}

// New builds a verifier. An empty issuer accepts tokens from any issuer.
func New(signingKey, issuer string) *Tokens {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Tokens{key: []byte(signingKey), parser: jwt.NewParser(opts...), issuer: issuer}
}

// Issue signs a token for a staff member. Production tokens come from the
// identity provider; this serves local tooling and tests.
func (t *Tokens) Issue(userID id.UserID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(t.key)
}

// Parse verifies signature, expiry and issuer, then the staff claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	var claims Claims
	if _, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errExpired
		}
		return nil, errInvalid
	}

	if _, err := id.ParseUserID(claims.Subject); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	if !policy.Role(claims.Role).IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown staff role")
	}
	return &claims, nil
}

// ValidateToken satisfies middleware.JWTValidator.
func (t *Tokens) ValidateToken(raw string) (*middleware.JWTClaims, error) {
	claims, err := t.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.Subject, Role: claims.Role}, nil
}
