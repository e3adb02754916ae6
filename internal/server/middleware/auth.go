// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidToken is returned by validators for a token that does not grant access.
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator decides whether a bearer token grants access.
type TokenValidator interface {
	ValidateToken(tokenString string) error
}

// StaticToken accepts exactly one shared secret.
type StaticToken struct {
	secret []byte
}

// NewStaticToken creates a validator for secret.
func NewStaticToken(secret string) *StaticToken {
	return &StaticToken{secret: []byte(secret)}
}

// ValidateToken compares the token with the secret in constant time.
// An empty secret accepts nothing.
func (s *StaticToken) ValidateToken(tokenString string) error {
	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(tokenString), s.secret) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	// Handle case-insensitive "Bearer" prefix
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthMiddleware rejects requests without a valid bearer token with 401 before they
// reach next. Preflight OPTIONS requests pass through.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r)
			if !ok || validator.ValidateToken(token) != nil {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"detail":      "Unauthorized",
		"status_code": http.StatusUnauthorized,
	})
}
