package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenClaims identifies a backend service allowed to dispatch
// notifications on behalf of the system.
type ServiceTokenClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// IssueServiceToken mints a short-lived HMAC token for a backend service.
func IssueServiceToken(secret []byte, service string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ServiceTokenClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// RequireServiceToken returns middleware that gates system dispatch routes
// behind a bearer token. An empty secret disables the gate, which fits
// single-operator bridge deployments without a token distribution story.
func RequireServiceToken(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			var claims ServiceTokenClaims
			_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
