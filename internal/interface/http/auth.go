package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier verifies access tokens. Implemented by auth.TokenManager.
type TokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

// authMiddleware rejects requests without a valid bearer token and stores the
// authenticated username in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.parseBearerToken(r)
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, auth.ErrTokenExpired) {
				code = "token_expired"
			}
			writeJSONError(w, http.StatusUnauthorized, code, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUsername, claims.Username())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuthMiddleware stores the username when a valid token is attached
// but lets anonymous requests through.
func (s *Server) optionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := s.parseBearerToken(r); err == nil {
			ctx := context.WithValue(r.Context(), contextKeyUsername, claims.Username())
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

var errNoToken = errors.New("no bearer token")

func (s *Server) parseBearerToken(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errNoToken
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, errNoToken
	}

	return s.deps.Tokens.Parse(token)
}
