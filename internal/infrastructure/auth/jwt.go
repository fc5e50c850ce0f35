// Package auth issues and verifies access tokens for the EcoLearn API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN MANAGER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Claims carries the identity embedded in an access token. The subject claim
// holds the username, which is the primary key across the whole system.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string {
	return c.Subject
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret   []byte
	tokenTTL time.Duration
	issuer   string
}

// NewTokenManager creates a token manager.
func NewTokenManager(secret string, tokenTTL time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &TokenManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		issuer:   issuer,
	}, nil
}

// Issue creates a signed token for the given user.
func (m *TokenManager) Issue(username, role string) (string, error) {
	now := time.Now()

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies a token and returns its claims.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenTTL returns the configured access token lifetime.
func (m *TokenManager) TokenTTL() time.Duration {
	return m.tokenTTL
}
